package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/logger"
	"github.com/ajitpratap0/nebula-sink/pkg/observability"
	"github.com/ajitpratap0/nebula-sink/pkg/registry"
)

// Sink names accepted in Config.Sink.
const (
	SinkBigQuery = "bigquery"
	SinkBigtable = "bigtable"
	SinkRedis    = "redis"
	SinkHTTP     = "http"
	SinkLog      = "log"
)

// Input formats accepted in InputConfig.Format.
const (
	FormatProto = "proto"
	FormatJSON  = "json"
	FormatAvro  = "avro"
)

// Config is the complete configuration of one sink connector. Only the
// section named by Sink is read; the others may be left empty.
type Config struct {
	// Name identifies the connector instance in logs and metrics.
	Name string `yaml:"name" json:"name"`
	// Sink selects the backend: bigquery, bigtable, redis, http or log.
	Sink string `yaml:"sink" json:"sink"`

	Input    InputConfig     `yaml:"input" json:"input"`
	Registry registry.Config `yaml:"registry" json:"registry"`
	Metadata MetadataConfig  `yaml:"metadata" json:"metadata"`

	BigQuery BigQueryConfig `yaml:"bigquery" json:"bigquery"`
	Bigtable BigtableConfig `yaml:"bigtable" json:"bigtable"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Log      LogConfig      `yaml:"log" json:"log"`

	Logging logger.Config               `yaml:"logging" json:"logging"`
	Metrics MetricsConfig               `yaml:"metrics" json:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing"`
}

// InputConfig describes how message payloads are decoded.
type InputConfig struct {
	// Format is proto, json or avro.
	Format string `yaml:"format" json:"format"`
	// Mode selects the key or the value of each message as payload.
	Mode string `yaml:"mode" json:"mode"`
	// Schema is the fully-qualified protobuf message name.
	Schema string `yaml:"schema" json:"schema"`
	// Strict rejects protobuf payloads carrying unknown fields.
	Strict bool `yaml:"strict" json:"strict"`
	// StringMode coerces JSON scalars to strings and rejects nested objects.
	StringMode bool `yaml:"string_mode" json:"string_mode"`
	// AvroSchema is the Avro writer schema as JSON.
	AvroSchema string `yaml:"avro_schema" json:"avro_schema"`
	// Confluent expects Confluent wire framing in front of Avro payloads.
	Confluent bool `yaml:"confluent" json:"confluent"`
}

// MetadataConfig lists message metadata echoed into backend records.
type MetadataConfig struct {
	// Columns are "name:type" pairs, e.g. "message_offset:integer".
	Columns []string `yaml:"columns" json:"columns"`
	// Namespace nests the columns under one record field when set.
	Namespace string `yaml:"namespace" json:"namespace"`
}

// MetadataColumn is one parsed entry of MetadataConfig.Columns.
type MetadataColumn struct {
	Name string
	Type string
}

// ParsedColumns splits the configured columns into names and types.
func (m MetadataConfig) ParsedColumns() ([]MetadataColumn, error) {
	cols := make([]MetadataColumn, 0, len(m.Columns))
	for _, c := range m.Columns {
		name, typ, ok := strings.Cut(c, ":")
		name, typ = strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(typ))
		if !ok || name == "" || typ == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "metadata column %q must be name:type", c)
		}
		cols = append(cols, MetadataColumn{Name: name, Type: typ})
	}
	return cols, nil
}

// MetricsConfig controls the Prometheus endpoint of the CLI.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// New returns a configuration for the given sink with defaults applied.
func New(name, sink string) *Config {
	cfg := &Config{Name: name, Sink: sink}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field that has a default.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "nebula-sink"
	}
	if c.Input.Format == "" {
		c.Input.Format = FormatProto
	}
	if c.Input.Mode == "" {
		c.Input.Mode = "value"
	}
	if c.Registry.RefreshInterval == 0 {
		c.Registry.RefreshInterval = 5 * time.Minute
	}

	c.BigQuery.applyDefaults()
	c.Bigtable.applyDefaults()
	c.Redis.applyDefaults()
	c.HTTP.applyDefaults()
	c.Log.applyDefaults()

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Tracing.ServiceName == "" {
		enabled := c.Tracing.Enabled
		c.Tracing = observability.DefaultTracingConfig()
		c.Tracing.Enabled = enabled
	}
}

// Validate checks the connector-independent settings and the section of the
// selected sink.
func (c *Config) Validate() error {
	switch c.Input.Format {
	case FormatProto:
		if c.Input.Schema == "" {
			return errors.New(errors.ErrorTypeConfig, "input.schema is required for proto input")
		}
		if len(c.Registry.URLs) == 0 {
			return errors.New(errors.ErrorTypeConfig, "registry.urls is required for proto input")
		}
	case FormatJSON:
	case FormatAvro:
		if c.Input.AvroSchema == "" {
			return errors.New(errors.ErrorTypeConfig, "input.avro_schema is required for avro input")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported input format %q", c.Input.Format)
	}
	if m := strings.ToLower(c.Input.Mode); m != "key" && m != "value" {
		return errors.Newf(errors.ErrorTypeConfig, "input.mode must be key or value, got %q", c.Input.Mode)
	}
	if c.Registry.RefreshInterval < 0 {
		return errors.New(errors.ErrorTypeConfig, "registry.refresh_interval cannot be negative")
	}
	if _, err := c.Metadata.ParsedColumns(); err != nil {
		return err
	}

	switch c.Sink {
	case SinkBigQuery:
		return c.BigQuery.Validate()
	case SinkBigtable:
		return c.Bigtable.Validate()
	case SinkRedis:
		return c.Redis.Validate()
	case SinkHTTP:
		return c.HTTP.Validate()
	case SinkLog:
		return nil
	case "":
		return errors.New(errors.ErrorTypeConfig, "sink is required")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported sink %q", c.Sink)
	}
}
