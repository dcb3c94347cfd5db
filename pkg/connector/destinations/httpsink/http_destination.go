// Package httpsink sends messages to an HTTP endpoint, one request per
// message or one JSON array per batch.
package httpsink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/compression"
	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/observability"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

const maxLoggedBody = 2048

// Destination is the HTTP sink backend.
type Destination struct {
	*base.BaseDestination

	method      string
	batch       bool
	contentType string
	maxConns    int
	retry       config.StatusRanges
	logged      config.StatusRanges
	compressor  compression.Compressor
	encoding    string
	builder     *requestBuilder
	client      *clients.HTTPClient
	errs        *base.ErrorHandler
}

// New creates the destination. mode selects the payload sent by RAW bodies.
func New(ctx context.Context, cfg config.HTTPConfig, mode message.Mode, logger *zap.Logger) (*Destination, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := cfg.Client
	client := clients.NewHTTPClient(&clientCfg, logger)
	if cfg.OAuth2.Enabled {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, client.Client())
		client = client.WithClient(cc.Client(tokenCtx))
	}
	return newDestination(cfg, mode, client, logger)
}

func newDestination(cfg config.HTTPConfig, mode message.Mode, client *clients.HTTPClient, logger *zap.Logger) (*Destination, error) {
	cfg.Method = strings.ToUpper(cfg.Method)
	cfg.BodyMode = strings.ToUpper(cfg.BodyMode)
	cfg.RequestMode = strings.ToUpper(cfg.RequestMode)

	builder, err := newRequestBuilder(cfg, mode)
	if err != nil {
		return nil, err
	}
	retry, err := config.ParseStatusRanges(cfg.RetryStatusCodeRanges)
	if err != nil {
		return nil, err
	}
	logged, err := config.ParseStatusRanges(cfg.LogStatusCodeRanges)
	if err != nil {
		return nil, err
	}
	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	encoding := compression.ContentEncoding(algo)
	if algo != compression.None && encoding == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "compression %s has no HTTP content encoding", algo)
	}
	compressor, err := compression.NewCompressor(compression.Config{Algorithm: algo})
	if err != nil {
		return nil, err
	}

	d := &Destination{
		BaseDestination: base.NewBaseDestination(config.SinkHTTP, logger, cfg.Client.RequestTimeout),
		method:          cfg.Method,
		batch:           cfg.RequestMode == config.RequestBatch,
		contentType:     "application/json",
		maxConns:        cfg.MaxConnections,
		retry:           retry,
		logged:          logged,
		compressor:      compressor,
		encoding:        encoding,
		builder:         builder,
		client:          client,
	}
	if cfg.BodyMode == config.BodyRaw {
		d.contentType = "application/octet-stream"
	}
	if d.maxConns <= 0 {
		d.maxConns = 1
	}
	if d.batch && cfg.BodyMode == config.BodyRaw {
		return nil, errors.New(errors.ErrorTypeConfig, "http BATCH request mode needs a JSON or TEMPLATE body")
	}
	if d.batch && !builder.constant() {
		return nil, errors.New(errors.ErrorTypeConfig, "http BATCH request mode needs constant url, headers and parameters")
	}
	d.errs = base.NewErrorHandler(d.BaseDestination)
	d.OnClose(client.Close)
	return d, nil
}

// NewBuilder implements sink.Backend.
func (d *Destination) NewBuilder(context.Context, *schema.Schema) (sink.RecordBuilder, error) {
	return d.builder, nil
}

// Write implements sink.Writer.
func (d *Destination) Write(ctx context.Context, records []*sink.Record) ([]sink.Failure, error) {
	if len(records) == 0 {
		return nil, nil
	}
	reqs := make([]*Request, len(records))
	for i, r := range records {
		req, ok := r.Payload.(*Request)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "unexpected payload %T", r.Payload)
		}
		reqs[i] = req
	}
	if d.batch {
		return nil, d.sendBatch(ctx, reqs)
	}
	return d.sendEach(ctx, reqs), nil
}

func (d *Destination) sendEach(ctx context.Context, reqs []*Request) []sink.Failure {
	results := make([]*sink.Failure, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConns)
	for i, r := range reqs {
		g.Go(func() error {
			if err := d.send(gctx, r.URL, r.Header, r.Body); err != nil {
				results[i] = &sink.Failure{Ordinal: i, Outcome: errors.OutcomeOf(err), Cause: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []sink.Failure
	for _, f := range results {
		if f != nil {
			failures = append(failures, *f)
		}
	}
	d.errs.Report(failures)
	return failures
}

func (d *Destination) sendBatch(ctx context.Context, reqs []*Request) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range reqs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r.Body)
	}
	buf.WriteByte(']')
	first := reqs[0]
	return d.send(ctx, first.URL, first.Header, buf.Bytes())
}

// send performs one request. A non-2xx status becomes a WriteError carrying
// the status and whether it falls in a retryable range.
func (d *Destination) send(ctx context.Context, target string, header http.Header, body []byte) error {
	ctx, span := d.StartSpan(ctx, "request")
	defer span.End()
	span.SetAttribute("http.method", d.method)

	payload, err := d.compressor.Compress(body)
	if err != nil {
		return &errors.WriteError{Outcome: errors.StatusOutcome(false, 0), Cause: err}
	}

	wctx, cancel := d.WriteContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(wctx, d.method, target, bytes.NewReader(payload))
	if err != nil {
		return &errors.WriteError{Outcome: errors.StatusOutcome(false, 0), Cause: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", d.contentType)
	}
	if d.encoding != "" {
		req.Header.Set("Content-Encoding", d.encoding)
	}
	observability.InjectHeaders(ctx, req.Header)

	resp, err := d.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return base.TransportError(err, errors.StatusOutcome(false, 0))
	}
	defer resp.Body.Close()
	span.SetAttribute("http.status_code", resp.StatusCode)

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if d.logged.Contains(resp.StatusCode) {
		d.Logger().Info("http sink response",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("request", truncate(body)),
			zap.ByteString("response", respBody))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &errors.WriteError{
		Outcome: errors.StatusOutcome(d.retry.Contains(resp.StatusCode), resp.StatusCode),
		Cause:   fmt.Errorf("%s %s returned %d", d.method, target, resp.StatusCode),
	}
}

func truncate(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}
