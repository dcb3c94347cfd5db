// Package bigquery streams records into a BigQuery table. The table schema
// is generated from the message schema; the table is created when missing
// and extended additively whenever the message schema changes.
package bigquery

import (
	"context"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// tableClient is the part of the BigQuery API the destination uses.
type tableClient interface {
	EnsureDataset(ctx context.Context) error
	Metadata(ctx context.Context) (*bigquery.TableMetadata, error)
	Create(ctx context.Context, md *bigquery.TableMetadata) error
	Update(ctx context.Context, md bigquery.TableMetadataToUpdate, etag string) (*bigquery.TableMetadata, error)
	Put(ctx context.Context, rows []*Row) error
}

// Destination writes rows through the streaming insert API.
type Destination struct {
	*base.BaseDestination

	cfg       config.BigQueryConfig
	meta      []config.MetadataColumn
	namespace string
	table     tableClient
	errs      *base.ErrorHandler
}

// New connects to BigQuery and returns a destination for cfg.
func New(ctx context.Context, cfg config.BigQueryConfig, md config.MetadataConfig, logger *zap.Logger) (*Destination, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		if cfg.CredentialsFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}

	dataset := client.Dataset(cfg.Dataset)
	t := dataset.Table(cfg.Table)
	ins := t.Inserter()
	ins.SkipInvalidRows = cfg.SkipInvalidRows
	ins.IgnoreUnknownValues = cfg.IgnoreUnknownValues

	d, err := newDestination(cfg, md, &gcpTable{dataset: dataset, table: t, inserter: ins, location: cfg.Location}, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	d.OnClose(client.Close)
	return d, nil
}

func newDestination(cfg config.BigQueryConfig, md config.MetadataConfig, table tableClient, logger *zap.Logger) (*Destination, error) {
	cols, err := md.ParsedColumns()
	if err != nil {
		return nil, err
	}
	d := &Destination{
		BaseDestination: base.NewBaseDestination(config.SinkBigQuery, logger, cfg.WriteTimeout),
		cfg:             cfg,
		meta:            cols,
		namespace:       md.Namespace,
		table:           table,
	}
	d.errs = base.NewErrorHandler(d.BaseDestination)
	return d, nil
}

// NewBuilder implements sink.Backend. With a schema it also brings the table
// in line with it; the builder is only returned once the table is ready.
func (d *Destination) NewBuilder(ctx context.Context, s *schema.Schema) (sink.RecordBuilder, error) {
	if s == nil {
		return newRowBuilder(nil, d.meta, d.namespace, d.cfg.RowInsertID), nil
	}

	desired, err := GenerateSchema(s, d.meta, d.namespace)
	if err != nil {
		return nil, err
	}
	if err := ValidateLayout(desired, d.cfg); err != nil {
		return nil, err
	}
	if err := d.ensureTable(ctx, desired); err != nil {
		return nil, err
	}
	return newRowBuilder(desired, d.meta, d.namespace, d.cfg.RowInsertID), nil
}

func (d *Destination) ensureTable(ctx context.Context, desired bigquery.Schema) error {
	ctx, span := d.StartSpan(ctx, "ensure_table")
	defer span.End()

	if err := d.table.EnsureDataset(ctx); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to ensure dataset").
			WithDetail("dataset", d.cfg.Dataset)
	}

	md, err := d.table.Metadata(ctx)
	if base.IsNotFound(err) {
		if err := d.table.Create(ctx, d.tableMetadata(desired)); err != nil {
			span.RecordError(err)
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create table").
				WithDetail("table", d.cfg.Table)
		}
		d.Logger().Info("table created",
			zap.String("table", d.cfg.Table),
			zap.Int("fields", len(desired)))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read table metadata").
			WithDetail("table", d.cfg.Table)
	}

	merged, changed := mergeSchema(md.Schema, desired)
	if !changed {
		return nil
	}
	if _, err := d.table.Update(ctx, bigquery.TableMetadataToUpdate{Schema: merged}, md.ETag); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to update table schema").
			WithDetail("table", d.cfg.Table)
	}
	d.Logger().Info("table schema updated",
		zap.String("table", d.cfg.Table),
		zap.Int("fields", len(merged)))
	return nil
}

func (d *Destination) tableMetadata(s bigquery.Schema) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{
		Schema: s,
		Labels: d.cfg.TableLabels,
	}
	if d.cfg.PartitionKey != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Field: d.cfg.PartitionKey,
			Type:  partitioningType(d.cfg.PartitionType),
		}
	}
	if len(d.cfg.ClusterKeys) > 0 {
		md.Clustering = &bigquery.Clustering{Fields: d.cfg.ClusterKeys}
	}
	return md
}

// Write implements sink.Writer. Row errors reported by the insert API become
// failures at the row's position.
func (d *Destination) Write(ctx context.Context, records []*sink.Record) ([]sink.Failure, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ctx, span := d.StartSpan(ctx, "insert")
	defer span.End()
	span.SetAttribute("rows", len(records))

	rows := make([]*Row, len(records))
	for i, r := range records {
		row, ok := r.Payload.(*Row)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "unexpected payload %T", r.Payload)
		}
		rows[i] = row
	}

	wctx, cancel := d.WriteContext(ctx)
	defer cancel()
	err := d.table.Put(wctx, rows)
	if err == nil {
		return nil, nil
	}

	var pme bigquery.PutMultiError
	if errors.As(err, &pme) {
		failures := rowFailures(pme)
		d.errs.Report(failures)
		return failures, nil
	}
	span.RecordError(err)
	d.Logger().Error("insert failed", zap.Int("rows", len(rows)), zap.Error(err))
	return nil, writeError(err)
}

// gcpTable adapts the BigQuery client types to tableClient.
type gcpTable struct {
	dataset  *bigquery.Dataset
	table    *bigquery.Table
	inserter *bigquery.Inserter
	location string
}

func (g *gcpTable) EnsureDataset(ctx context.Context) error {
	_, err := g.dataset.Metadata(ctx)
	if base.IsNotFound(err) {
		return g.dataset.Create(ctx, &bigquery.DatasetMetadata{Location: g.location})
	}
	return err
}

func (g *gcpTable) Metadata(ctx context.Context) (*bigquery.TableMetadata, error) {
	return g.table.Metadata(ctx)
}

func (g *gcpTable) Create(ctx context.Context, md *bigquery.TableMetadata) error {
	return g.table.Create(ctx, md)
}

func (g *gcpTable) Update(ctx context.Context, md bigquery.TableMetadataToUpdate, etag string) (*bigquery.TableMetadata, error) {
	return g.table.Update(ctx, md, etag)
}

func (g *gcpTable) Put(ctx context.Context, rows []*Row) error {
	return g.inserter.Put(ctx, rows)
}
