// Package nebulasink writes batches of messages to BigQuery, Bigtable, Redis
// or an HTTP endpoint and reports, for every message that could not be
// written, why it failed.
//
// # Architecture
//
// A push moves through three stages:
//
// 1. Parsing: message.Parser decodes the key or value of each message as
// protobuf (descriptors from a schema registry), JSON or Avro into a
// message.ParsedMessage with a schema.Schema.
//
// 2. Building: each destination's RecordBuilder turns a parsed message into
// zero or more backend records. Templates ("pattern,field1,field2") render
// keys, URLs and column names from message fields.
//
// 3. Writing: the destination writes all valid records in one call. Per-record
// rejections and whole-call failures are classified into a closed error
// taxonomy and reported by the index of the message in the batch.
//
// Nothing is retried inside the sink. SINK_RETRYABLE_ERROR tells the caller
// the message may succeed if sent again.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/nebula-sink/pkg/config"
//	    "github.com/ajitpratap0/nebula-sink/pkg/connector"
//	)
//
//	cfg, err := config.LoadConfig("sink.yaml")
//	if err != nil {
//	    return err
//	}
//	conn, err := connector.Open(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	resp := conn.Push(ctx, batch)
//	for _, idx := range resp.Indices() {
//	    info, _ := resp.Get(idx)
//	    log.Printf("message %d failed: %s", idx, info.Type)
//	}
//
// # Package Organization
//
//   - pkg/message: messages, parsers (protomsg, jsonmsg, avromsg) and value rendering
//   - pkg/schema: schema trees derived from descriptors or sniffed from documents
//   - pkg/template: field templates
//   - pkg/sink: Push, the schema snapshot cache and the response
//   - pkg/errors: structured errors, outcomes and classification
//   - pkg/registry: protobuf descriptor sets from http, gs, s3 or file sources
//   - pkg/connector: destinations, their registry and Open
//   - pkg/config: YAML configuration with defaults and validation
//   - pkg/logger, pkg/metrics, pkg/observability: zap, Prometheus, OpenTelemetry
//
// # Command Line
//
//	nebula-sink list
//	nebula-sink run --config sink.yaml --input messages.ndjson --base64
//	nebula-sink version
package nebulasink
