package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/compression"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

// Source fetches one serialized FileDescriptorSet.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// SourceConfig holds the credentials needed by the different source kinds.
type SourceConfig struct {
	// Headers are sent with every http(s) request.
	Headers map[string]string `yaml:"headers"`
	// CredentialsFile is a Google service account key for gs:// sources.
	CredentialsFile string `yaml:"credentials_file"`
	// S3 settings for s3:// sources. Empty values fall back to the default
	// AWS credential chain.
	S3Region          string `yaml:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3ForcePathStyle  bool   `yaml:"s3_force_path_style"`
}

// NewSource builds the source for a location. Supported forms are
// http(s)://, gs://bucket/object, s3://bucket/key, file:// and bare paths.
// Objects whose name ends in a compression extension are decompressed.
func NewSource(ctx context.Context, location string, cfg SourceConfig, httpClient *clients.HTTPClient) (Source, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid registry url")
	}

	var src Source
	switch u.Scheme {
	case "http", "https":
		if httpClient == nil {
			httpClient = clients.NewHTTPClient(nil, nil)
		}
		src = &httpSource{url: location, headers: cfg.Headers, client: httpClient}
	case "gs":
		opts := []option.ClientOption{}
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "can't create gs client")
		}
		src = &gcsSource{client: client, bucket: u.Host, object: strings.TrimPrefix(u.Path, "/")}
	case "s3":
		api, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src = &s3Source{api: api, bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}
	case "file", "":
		p := location
		if u.Scheme == "file" {
			p = u.Path
		}
		src = fileSource(p)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported registry url scheme %q", u.Scheme)
	}

	if alg := compression.FromExtension(u.Path); alg != compression.None {
		c, err := compression.NewCompressor(compression.Config{Algorithm: alg})
		if err != nil {
			return nil, err
		}
		src = &decompressingSource{Source: src, compressor: c}
	}
	return src, nil
}

type httpSource struct {
	url     string
	headers map[string]string
	client  *clients.HTTPClient
}

func (s *httpSource) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "registry request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read registry response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeConnection, "registry returned status %d", resp.StatusCode).
			WithDetail("body", truncate(string(body), 256))
	}
	return body, nil
}

func (s *httpSource) String() string { return s.url }

type gcsSource struct {
	client *storage.Client
	bucket string
	object string
}

func (s *gcsSource) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "can't acquire reader").
			WithDetail("object", s.String())
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "reader failed")
	}
	return data, nil
}

func (s *gcsSource) String() string { return fmt.Sprintf("gs://%s/%s", s.bucket, s.object) }

// s3API is the subset of the S3 client used here.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func newS3Client(ctx context.Context, cfg SourceConfig) (s3API, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load aws config")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3ForcePathStyle
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	}), nil
}

type s3Source struct {
	api    s3API
	bucket string
	key    string
}

func (s *s3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "get object failed").
			WithDetail("object", s.String())
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read object")
	}
	return data, nil
}

func (s *s3Source) String() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }

type fileSource string

func (s fileSource) Fetch(context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(s))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read descriptor set file")
	}
	return data, nil
}

func (s fileSource) String() string { return string(s) }

type decompressingSource struct {
	Source
	compressor compression.Compressor
}

func (s *decompressingSource) Fetch(ctx context.Context) ([]byte, error) {
	raw, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.compressor.Decompress(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decompress descriptor set").
			WithDetail("algorithm", string(s.compressor.Algorithm()))
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
