package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/compression"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/template"
)

// BigQueryConfig configures the BigQuery sink.
type BigQueryConfig struct {
	ProjectID       string `yaml:"project_id" json:"project_id"`
	Dataset         string `yaml:"dataset" json:"dataset"`
	Table           string `yaml:"table" json:"table"`
	Location        string `yaml:"location" json:"location"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// PartitionKey is a TIMESTAMP or DATE field; empty disables partitioning.
	PartitionKey  string `yaml:"partition_key" json:"partition_key"`
	PartitionType string `yaml:"partition_type" json:"partition_type"`
	// ClusterKeys may name at most four fields.
	ClusterKeys []string          `yaml:"cluster_keys" json:"cluster_keys"`
	TableLabels map[string]string `yaml:"table_labels" json:"table_labels"`

	// RowInsertID sends a random insert ID with every row for best-effort
	// deduplication.
	RowInsertID         bool          `yaml:"row_insert_id" json:"row_insert_id"`
	SkipInvalidRows     bool          `yaml:"skip_invalid_rows" json:"skip_invalid_rows"`
	IgnoreUnknownValues bool          `yaml:"ignore_unknown_values" json:"ignore_unknown_values"`
	WriteTimeout        time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// MaxClusterKeys is the most clustering fields a BigQuery table accepts.
const MaxClusterKeys = 4

func (c *BigQueryConfig) applyDefaults() {
	if c.PartitionType == "" {
		c.PartitionType = "DAY"
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Minute
	}
}

// Validate checks the BigQuery section.
func (c *BigQueryConfig) Validate() error {
	if c.ProjectID == "" || c.Dataset == "" || c.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "bigquery project_id, dataset and table are required")
	}
	switch strings.ToUpper(c.PartitionType) {
	case "DAY", "HOUR", "MONTH", "YEAR":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported bigquery partition_type %q", c.PartitionType)
	}
	if len(c.ClusterKeys) > MaxClusterKeys {
		return errors.Newf(errors.ErrorTypeConfig, "bigquery accepts at most %d cluster keys, got %d",
			MaxClusterKeys, len(c.ClusterKeys))
	}
	return nil
}

// BigtableConfig configures the Bigtable sink.
type BigtableConfig struct {
	ProjectID       string `yaml:"project_id" json:"project_id"`
	InstanceID      string `yaml:"instance_id" json:"instance_id"`
	Table           string `yaml:"table" json:"table"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// RowKeyTemplate renders the row key, e.g. "order-%s,order_number".
	RowKeyTemplate string `yaml:"row_key_template" json:"row_key_template"`
	// ColumnFamilyMapping maps family to qualifier to field name.
	ColumnFamilyMapping map[string]map[string]string `yaml:"column_family_mapping" json:"column_family_mapping"`
	WriteTimeout        time.Duration                `yaml:"write_timeout" json:"write_timeout"`
}

func (c *BigtableConfig) applyDefaults() {
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Minute
	}
}

// Validate checks the Bigtable section.
func (c *BigtableConfig) Validate() error {
	if c.ProjectID == "" || c.InstanceID == "" || c.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "bigtable project_id, instance_id and table are required")
	}
	if _, err := template.New(c.RowKeyTemplate); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid bigtable row_key_template")
	}
	if len(c.ColumnFamilyMapping) == 0 {
		return errors.New(errors.ErrorTypeConfig, "bigtable column_family_mapping is required")
	}
	return nil
}

// Redis data types.
const (
	RedisKeyValue = "KEYVALUE"
	RedisList     = "LIST"
	RedisHashSet  = "HASHSET"
)

// Redis TTL modes.
const (
	TTLDisable   = "DISABLE"
	TTLDuration  = "DURATION"
	TTLExactTime = "EXACT_TIME"
)

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	// Deployment is standalone or cluster.
	Deployment string   `yaml:"deployment" json:"deployment"`
	Addrs      []string `yaml:"addrs" json:"addrs"`
	Username   string   `yaml:"username" json:"username"`
	Password   string   `yaml:"password" json:"password"`
	DB         int      `yaml:"db" json:"db"`

	DataType    string `yaml:"data_type" json:"data_type"`
	KeyTemplate string `yaml:"key_template" json:"key_template"`
	// KeyValueDataField is the field stored under the key for KEYVALUE.
	KeyValueDataField string `yaml:"key_value_data_field" json:"key_value_data_field"`
	// ListDataField is the field pushed onto the list for LIST.
	ListDataField string `yaml:"list_data_field" json:"list_data_field"`
	// HashSetFieldMapping maps a message field to a hash field template
	// for HASHSET.
	HashSetFieldMapping map[string]string `yaml:"hashset_field_to_column_mapping" json:"hashset_field_to_column_mapping"`

	TTLType string `yaml:"ttl_type" json:"ttl_type"`
	// TTLValue is seconds for DURATION and a unix timestamp for EXACT_TIME.
	TTLValue int64 `yaml:"ttl_value" json:"ttl_value"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

func (c *RedisConfig) applyDefaults() {
	if c.Deployment == "" {
		c.Deployment = "standalone"
	}
	if len(c.Addrs) == 0 {
		c.Addrs = []string{"localhost:6379"}
	}
	if c.DataType == "" {
		c.DataType = RedisHashSet
	}
	if c.TTLType == "" {
		c.TTLType = TTLDisable
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate checks the Redis section.
func (c *RedisConfig) Validate() error {
	switch strings.ToLower(c.Deployment) {
	case "standalone", "cluster":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported redis deployment %q", c.Deployment)
	}
	if len(c.Addrs) == 0 {
		return errors.New(errors.ErrorTypeConfig, "redis addrs is required")
	}
	if _, err := template.New(c.KeyTemplate); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid redis key_template")
	}
	switch strings.ToUpper(c.DataType) {
	case RedisKeyValue:
		if c.KeyValueDataField == "" {
			return errors.New(errors.ErrorTypeConfig, "redis key_value_data_field is required for KEYVALUE")
		}
	case RedisList:
		if c.ListDataField == "" {
			return errors.New(errors.ErrorTypeConfig, "redis list_data_field is required for LIST")
		}
	case RedisHashSet:
		if len(c.HashSetFieldMapping) == 0 {
			return errors.New(errors.ErrorTypeConfig, "redis hashset_field_to_column_mapping is required for HASHSET")
		}
		for field, column := range c.HashSetFieldMapping {
			if _, err := template.New(column); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "invalid redis hash field template").
					WithDetail("field", field)
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported redis data_type %q", c.DataType)
	}
	switch strings.ToUpper(c.TTLType) {
	case TTLDisable:
	case TTLDuration, TTLExactTime:
		if c.TTLValue <= 0 {
			return errors.Newf(errors.ErrorTypeConfig, "redis ttl_value must be positive for %s", c.TTLType)
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported redis ttl_type %q", c.TTLType)
	}
	return nil
}

// HTTP request and body modes.
const (
	RequestSingle = "SINGLE"
	RequestBatch  = "BATCH"

	BodyRaw      = "RAW"
	BodyJSON     = "JSON"
	BodyTemplate = "TEMPLATE"
)

// HTTPConfig configures the HTTP sink.
type HTTPConfig struct {
	// URL is a template, e.g. "http://api/orders/%s,order_number".
	URL    string `yaml:"url" json:"url"`
	Method string `yaml:"method" json:"method"`
	// Headers and Parameters map names to value templates.
	Headers    map[string]string `yaml:"headers" json:"headers"`
	Parameters map[string]string `yaml:"parameters" json:"parameters"`

	RequestMode  string `yaml:"request_mode" json:"request_mode"`
	BodyMode     string `yaml:"body_mode" json:"body_mode"`
	BodyTemplate string `yaml:"body_template" json:"body_template"`
	// MaxConnections bounds concurrent requests in SINGLE mode.
	MaxConnections int `yaml:"max_connections" json:"max_connections"`

	// RetryStatusCodeRanges lists status ranges classified as retryable,
	// e.g. "500-599,429-429".
	RetryStatusCodeRanges string `yaml:"retry_status_code_ranges" json:"retry_status_code_ranges"`
	// LogStatusCodeRanges lists status ranges whose requests are logged.
	LogStatusCodeRanges string `yaml:"log_status_code_ranges" json:"log_status_code_ranges"`

	Compression string      `yaml:"compression" json:"compression"`
	OAuth2      OAuth2Config `yaml:"oauth2" json:"oauth2"`

	Client clients.HTTPConfig `yaml:"client" json:"client"`
}

// OAuth2Config enables the client credentials flow.
type OAuth2Config struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
}

func (c *HTTPConfig) applyDefaults() {
	if c.Method == "" {
		c.Method = "PUT"
	}
	if c.RequestMode == "" {
		c.RequestMode = RequestSingle
	}
	if c.BodyMode == "" {
		c.BodyMode = BodyRaw
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.RetryStatusCodeRanges == "" {
		c.RetryStatusCodeRanges = "500-599"
	}
	if c.LogStatusCodeRanges == "" {
		c.LogStatusCodeRanges = "400-499"
	}
	d := clients.DefaultHTTPConfig()
	if c.Client.MaxIdleConns == 0 {
		c.Client.MaxIdleConns = d.MaxIdleConns
	}
	if c.Client.MaxIdleConnsPerHost == 0 {
		c.Client.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.Client.IdleConnTimeout == 0 {
		c.Client.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.Client.DialTimeout == 0 {
		c.Client.DialTimeout = d.DialTimeout
	}
	if c.Client.TLSHandshakeTimeout == 0 {
		c.Client.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	if c.Client.ResponseHeaderTimeout == 0 {
		c.Client.ResponseHeaderTimeout = d.ResponseHeaderTimeout
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = d.RequestTimeout
	}
	if c.Client.KeepAlive == 0 {
		c.Client.KeepAlive = d.KeepAlive
	}
	if c.Client.UserAgent == "" {
		c.Client.UserAgent = d.UserAgent
	}
}

// Validate checks the HTTP section.
func (c *HTTPConfig) Validate() error {
	if c.URL == "" {
		return errors.New(errors.ErrorTypeConfig, "http url is required")
	}
	switch strings.ToUpper(c.Method) {
	case "PUT", "POST", "PATCH", "DELETE":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported http method %q", c.Method)
	}
	switch strings.ToUpper(c.BodyMode) {
	case BodyRaw, BodyJSON:
	case BodyTemplate:
		if c.BodyTemplate == "" {
			return errors.New(errors.ErrorTypeConfig, "http body_template is required for TEMPLATE body mode")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported http body_mode %q", c.BodyMode)
	}
	switch strings.ToUpper(c.RequestMode) {
	case RequestSingle:
		if c.MaxConnections <= 0 {
			return errors.New(errors.ErrorTypeConfig, "http max_connections must be positive")
		}
	case RequestBatch:
		if strings.ToUpper(c.BodyMode) == BodyRaw {
			return errors.New(errors.ErrorTypeConfig, "http BATCH request mode needs a JSON or TEMPLATE body")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported http request_mode %q", c.RequestMode)
	}
	if _, err := ParseStatusRanges(c.RetryStatusCodeRanges); err != nil {
		return err
	}
	if _, err := ParseStatusRanges(c.LogStatusCodeRanges); err != nil {
		return err
	}
	if _, err := compression.ParseAlgorithm(c.Compression); err != nil {
		return err
	}
	if c.OAuth2.Enabled && (c.OAuth2.ClientID == "" || c.OAuth2.TokenURL == "") {
		return errors.New(errors.ErrorTypeConfig, "http oauth2 client_id and token_url are required")
	}
	return nil
}

// StatusRanges is a set of inclusive status code ranges.
type StatusRanges [][2]int

// ParseStatusRanges parses "500-599,429-429". The empty string is an empty set.
func ParseStatusRanges(s string) (StatusRanges, error) {
	var out StatusRanges
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, ok := strings.Cut(part, "-")
		if !ok {
			hi = lo
		}
		from, err1 := strconv.Atoi(strings.TrimSpace(lo))
		to, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || from > to {
			return nil, errors.Newf(errors.ErrorTypeConfig, "invalid status code range %q", part)
		}
		out = append(out, [2]int{from, to})
	}
	return out, nil
}

// Contains reports whether code falls in any range.
func (r StatusRanges) Contains(code int) bool {
	for _, rg := range r {
		if code >= rg[0] && code <= rg[1] {
			return true
		}
	}
	return false
}

// LogConfig configures the log sink.
type LogConfig struct {
	// Level is the zap level used for each message.
	Level string `yaml:"level" json:"level"`
}

func (c *LogConfig) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
