package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Source locates input artifacts by file name.
type Source interface {
	// Open returns a reader for the named artifact. It returns a
	// *MissingArtifactError when the artifact does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// NewSource creates a Source for the given location. Locations starting
// with s3:// or http(s):// read from remote storage; anything else is
// treated as a local directory.
func NewSource(location string) (Source, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		return NewS3Source(location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewURLSource(location, nil), nil
	default:
		return NewDirSource(location), nil
	}
}

// DirSource reads artifacts from a local test directory. Artifacts the
// directory does not carry are looked up in the shared golden dataset
// directory two levels up, where fixture sets keep their common files.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over a local directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Open opens the named artifact, trying the test directory first and
// the shared golden dataset directory second.
func (d *DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	primary := filepath.Join(d.dir, name)
	f, err := os.Open(primary)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open %s: %w", primary, err)
	}

	fallback := filepath.Join(d.dir, "..", "..", "test_artifacts", "golden_dataset", name)
	f, err = os.Open(fallback)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open %s: %w", fallback, err)
	}

	return nil, &MissingArtifactError{Name: name, Searched: []string{primary, fallback}}
}

// InlineSource serves artifacts directly from memory.
type InlineSource struct {
	files map[string][]byte
}

// NewInlineSource creates a source over in-memory artifacts keyed by
// file name.
func NewInlineSource(files map[string][]byte) *InlineSource {
	return &InlineSource{files: files}
}

// Open returns a reader for the named artifact.
func (i *InlineSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := i.files[name]
	if !ok {
		return nil, &MissingArtifactError{Name: name}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// URLSource reads artifacts relative to an HTTP(S) base URL.
type URLSource struct {
	baseURL string
	headers map[string]string
}

// NewURLSource creates a new URL source.
func NewURLSource(baseURL string, headers map[string]string) *URLSource {
	return &URLSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
	}
}

// Open fetches the named artifact and returns a reader.
func (u *URLSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	url := u.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range u.headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, &MissingArtifactError{Name: name, Searched: []string{url}}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// S3Source reads artifacts from an S3 prefix, including S3-compatible
// stores via a custom endpoint.
type S3Source struct {
	bucket          string
	prefix          string
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
}

// NewS3Source creates a source for an s3://bucket/prefix location.
func NewS3Source(location string) (*S3Source, error) {
	trimmed := strings.TrimPrefix(location, "s3://")
	bucket, prefix, _ := strings.Cut(trimmed, "/")
	if bucket == "" {
		return nil, fmt.Errorf("invalid S3 location %q", location)
	}
	return &S3Source{bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// WithRegion sets the AWS region.
func (s *S3Source) WithRegion(region string) *S3Source {
	s.region = region
	return s
}

// WithEndpoint sets a custom endpoint for S3-compatible stores.
func (s *S3Source) WithEndpoint(endpoint string) *S3Source {
	s.endpoint = endpoint
	return s
}

// WithCredentials sets static credentials, overriding the default chain.
func (s *S3Source) WithCredentials(accessKeyID, secretAccessKey string) *S3Source {
	s.accessKeyID = accessKeyID
	s.secretAccessKey = secretAccessKey
	return s
}

// Open fetches the named artifact from S3 and returns a reader.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	client, err := s.createClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	key := path.Join(s.prefix, name)
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &MissingArtifactError{
				Name:     name,
				Searched: []string{fmt.Sprintf("s3://%s/%s", s.bucket, key)},
			}
		}
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}

	return result.Body, nil
}

func (s *S3Source) createClient(ctx context.Context) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if s.region != "" {
		opts = append(opts, config.WithRegion(s.region))
	}

	if s.accessKeyID != "" && s.secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.accessKeyID, s.secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if s.endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true // Required for most S3-compatible stores
		})
	}

	return s3.NewFromConfig(cfg, s3Opts...), nil
}
