// Package bigtable writes one row per message into a Bigtable table. The row
// key comes from a template and each configured family/qualifier pair takes
// the rendered value of one message field.
package bigtable

import (
	"context"
	"sort"

	"cloud.google.com/go/bigtable"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
	"github.com/ajitpratap0/nebula-sink/pkg/template"
)

// Cell is one value of a row.
type Cell struct {
	Family    string
	Qualifier string
	Value     []byte
}

// Entry is the mutation for one row.
type Entry struct {
	RowKey string
	Cells  []Cell
}

// bulkApplier writes entries and reports one error slot per entry, nil on
// success. A non-nil second result means the whole call failed.
type bulkApplier interface {
	Apply(ctx context.Context, entries []*Entry) ([]error, error)
}

// familyLister returns the column families of the table.
type familyLister interface {
	Families(ctx context.Context) ([]string, error)
}

type column struct {
	family    string
	qualifier string
	field     string
}

// Destination writes entries through ApplyBulk.
type Destination struct {
	*base.BaseDestination

	table   string
	rowKey  *template.Template
	columns []column
	bulk    bulkApplier
	errs    *base.ErrorHandler
}

// New opens the table and checks that every configured family exists.
func New(ctx context.Context, cfg config.BigtableConfig, logger *zap.Logger) (*Destination, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigtable.NewClient(ctx, cfg.ProjectID, cfg.InstanceID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Bigtable client")
	}
	admin, err := bigtable.NewAdminClient(ctx, cfg.ProjectID, cfg.InstanceID, opts...)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Bigtable admin client")
	}
	defer admin.Close()

	d, err := newDestination(ctx, cfg, &gcpTable{table: client.Open(cfg.Table)}, &gcpAdmin{admin: admin, table: cfg.Table}, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	d.OnClose(client.Close)
	return d, nil
}

func newDestination(ctx context.Context, cfg config.BigtableConfig, bulk bulkApplier, admin familyLister, logger *zap.Logger) (*Destination, error) {
	rowKey, err := template.New(cfg.RowKeyTemplate)
	if err != nil {
		return nil, err
	}
	columns := sortedColumns(cfg.ColumnFamilyMapping)
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "bigtable column_family_mapping is empty")
	}

	d := &Destination{
		BaseDestination: base.NewBaseDestination(config.SinkBigtable, logger, cfg.WriteTimeout),
		table:           cfg.Table,
		rowKey:          rowKey,
		columns:         columns,
		bulk:            bulk,
	}
	d.errs = base.NewErrorHandler(d.BaseDestination)

	if err := d.checkFamilies(ctx, admin); err != nil {
		return nil, err
	}
	return d, nil
}

func sortedColumns(mapping map[string]map[string]string) []column {
	var out []column
	for family, qualifiers := range mapping {
		for qualifier, field := range qualifiers {
			out = append(out, column{family: family, qualifier: qualifier, field: field})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].family != out[j].family {
			return out[i].family < out[j].family
		}
		return out[i].qualifier < out[j].qualifier
	})
	return out
}

func (d *Destination) checkFamilies(ctx context.Context, admin familyLister) error {
	families, err := admin.Families(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read table info").
			WithDetail("table", d.table)
	}
	existing := make(map[string]bool, len(families))
	for _, f := range families {
		existing[f] = true
	}
	for _, c := range d.columns {
		if !existing[c.family] {
			return errors.Newf(errors.ErrorTypeConfig, "column family %q does not exist in table %s", c.family, d.table)
		}
	}
	return nil
}

// NewBuilder implements sink.Backend. Rows only depend on field lookups, so
// the schema is not needed.
func (d *Destination) NewBuilder(context.Context, *schema.Schema) (sink.RecordBuilder, error) {
	return sink.RecordBuilderFunc(d.build), nil
}

func (d *Destination) build(_ *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
	key, err := d.rowKey.Render(parsed)
	if err != nil {
		return nil, err
	}
	entry := &Entry{RowKey: key, Cells: make([]Cell, 0, len(d.columns))}
	for _, c := range d.columns {
		f, err := parsed.FieldByName(c.field)
		if err != nil {
			return nil, err
		}
		v, err := f.Render()
		if err != nil {
			return nil, err
		}
		entry.Cells = append(entry.Cells, Cell{Family: c.family, Qualifier: c.qualifier, Value: []byte(v)})
	}
	return []interface{}{entry}, nil
}

// Write implements sink.Writer.
func (d *Destination) Write(ctx context.Context, records []*sink.Record) ([]sink.Failure, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ctx, span := d.StartSpan(ctx, "apply_bulk")
	defer span.End()
	span.SetAttribute("rows", len(records))

	entries := make([]*Entry, len(records))
	for i, r := range records {
		e, ok := r.Payload.(*Entry)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "unexpected payload %T", r.Payload)
		}
		entries[i] = e
	}

	wctx, cancel := d.WriteContext(ctx)
	defer cancel()
	errs, err := d.bulk.Apply(wctx, entries)
	if err != nil {
		span.RecordError(err)
		d.Logger().Error("bulk apply failed", zap.Int("rows", len(entries)), zap.Error(err))
		return nil, base.TransportError(err, statusOutcome(err))
	}

	var failures []sink.Failure
	for i, e := range errs {
		if e == nil {
			continue
		}
		failures = append(failures, sink.Failure{Ordinal: i, Outcome: statusOutcome(e), Cause: e})
	}
	d.errs.Report(failures)
	return failures, nil
}

// gcpTable adapts *bigtable.Table to bulkApplier.
type gcpTable struct {
	table *bigtable.Table
}

func (g *gcpTable) Apply(ctx context.Context, entries []*Entry) ([]error, error) {
	keys := make([]string, len(entries))
	muts := make([]*bigtable.Mutation, len(entries))
	ts := bigtable.Now()
	for i, e := range entries {
		keys[i] = e.RowKey
		mut := bigtable.NewMutation()
		for _, c := range e.Cells {
			mut.Set(c.Family, c.Qualifier, ts, c.Value)
		}
		muts[i] = mut
	}
	return g.table.ApplyBulk(ctx, keys, muts)
}

// gcpAdmin adapts *bigtable.AdminClient to familyLister.
type gcpAdmin struct {
	admin *bigtable.AdminClient
	table string
}

func (g *gcpAdmin) Families(ctx context.Context) ([]string, error) {
	info, err := g.admin.TableInfo(ctx, g.table)
	if err != nil {
		return nil, err
	}
	return info.Families, nil
}
