// Package sink turns batches of messages into backend writes and reports
// failures per message.
//
// A push runs in five steps:
//
//  1. every message is parsed and converted into records with the current
//     schema snapshot
//  2. records are split into valid and invalid ones, keeping order
//  3. invalid records go straight into the response
//  4. valid records are written to the backend in one call
//  5. backend failures are classified and merged into the response by the
//     original batch index
//
// Nothing is retried here. A SINK_RETRYABLE_ERROR tells the caller to send
// the message again later.
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/metrics"
	"github.com/ajitpratap0/nebula-sink/pkg/observability"
)

// Options configures a Sink.
type Options struct {
	// Name labels logs, metrics and spans.
	Name string
	// Mode selects the payload of each message.
	Mode message.Mode
	// SchemaRef is passed to the parser, e.g. a protobuf message name.
	SchemaRef string
	Logger    *zap.Logger
}

// Sink pushes batches to one backend. Push may be called concurrently.
type Sink struct {
	name      string
	mode      message.Mode
	schemaRef string
	cache     *SchemaCache
	writer    Writer
	logger    *zap.Logger
	tracer    *observability.SinkTracer
}

// New creates a sink writing through w with snapshots from cache.
func New(opts Options, cache *SchemaCache, w Writer) *Sink {
	if opts.Name == "" {
		opts.Name = "sink"
	}
	if opts.Mode == "" {
		opts.Mode = message.ModeValue
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sink{
		name:      opts.Name,
		mode:      opts.Mode,
		schemaRef: opts.SchemaRef,
		cache:     cache,
		writer:    w,
		logger:    opts.Logger.With(zap.String("sink", opts.Name)),
		tracer:    observability.NewSinkTracer(opts.Name),
	}
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return s.name
}

// Cache returns the schema cache the sink reads from.
func (s *Sink) Cache() *SchemaCache {
	return s.cache
}

// Push delivers batch and returns the errors by batch index. The response is
// never nil and is empty when every message was written.
func (s *Sink) Push(ctx context.Context, batch []*message.Message) *Response {
	timer := metrics.NewTimer()
	ctx, span := s.tracer.StartSpan(ctx, "push")
	defer span.End()
	span.SetAttribute("batch.size", len(batch))

	snap := s.cache.Current()
	resp := NewResponse()

	var built []*Record
	for i, msg := range batch {
		idx := int64(i)
		for _, r := range BuildRecords(snap.Parser, snap.Builder, msg, s.mode, s.schemaRef, idx) {
			if !r.Valid() {
				s.logger.Debug("message conversion failed",
					zap.Int64("index", idx),
					zap.String("error_type", string(r.Err.Type)),
					zap.Error(r.Err.Cause))
				resp.Add(idx, r.Err)
				continue
			}
			built = append(built, r)
		}
	}

	valid := make([]*Record, 0, len(built))
	for _, r := range built {
		if !resp.Has(r.Index) {
			valid = append(valid, r)
		}
	}
	if len(valid) > 0 {
		s.write(ctx, valid, resp)
	}

	span.SetAttribute("batch.failed", resp.Len())
	metrics.BatchSize.WithLabelValues(s.name).Observe(float64(len(batch)))
	metrics.RecordResponse(s.name, len(batch), resp.ErrorTypes())
	metrics.PushLatency.WithLabelValues(s.name).Observe(timer.Stop().Seconds())
	return resp
}

func (s *Sink) write(ctx context.Context, records []*Record, resp *Response) {
	ctx, span := s.tracer.StartSpan(ctx, "write")
	defer span.End()
	span.SetAttribute("records", len(records))

	timer := metrics.NewTimer()
	failures, err := s.writer.Write(ctx, records)
	metrics.WriteLatency.WithLabelValues(s.name).Observe(timer.Stop().Seconds())

	if err != nil {
		span.RecordError(err)
		info := errors.NewErrorInfo(err, errors.Classify(errors.OutcomeOf(err)))
		s.logger.Warn("backend write failed",
			zap.Int("records", len(records)),
			zap.String("error_type", string(info.Type)),
			zap.Error(err))
		for _, r := range records {
			resp.Add(r.Index, info)
		}
		return
	}

	for _, f := range failures {
		if f.Ordinal < 0 || f.Ordinal >= len(records) {
			s.logger.Error("backend reported a failure for an unknown record", zap.Int("ordinal", f.Ordinal))
			continue
		}
		errType := errors.Classify(f.Outcome)
		if errType == "" {
			continue
		}
		resp.Add(records[f.Ordinal].Index, errors.NewErrorInfo(f.Cause, errType))
	}
	if len(failures) > 0 {
		s.logger.Warn("backend rejected records",
			zap.Int("records", len(records)),
			zap.Int("failed", len(failures)))
	}
}

// Close releases the backend.
func (s *Sink) Close() error {
	return s.writer.Close()
}
