// Package fetch downloads observational data files from S3 or an
// S3-compatible store into a local cache directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-velociraptor/internal/logging"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Client is the subset of the S3 API the fetcher uses.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config locates the remote store.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	Prefix    string
	PathStyle bool
}

// Fetcher copies objects into CacheDir, keeping their key below the prefix
// as the relative path. Objects already in the cache are not downloaded
// again.
type Fetcher struct {
	client   Client
	bucket   string
	prefix   string
	cacheDir string
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New builds a Fetcher with an S3 client from the default AWS
// configuration chain.
func New(ctx context.Context, cfg Config, cacheDir string, opts ...Option) (*Fetcher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, cacheDir, opts...), nil
}

// NewWithClient builds a Fetcher over an existing client.
func NewWithClient(client Client, bucket, prefix, cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   client,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
		cacheDir: cacheDir,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) key(name string) string {
	if f.prefix == "" {
		return name
	}
	return f.prefix + "/" + name
}

// List returns the names below the prefix that end in suffix, sorted.
// An empty suffix lists everything.
func (f *Fetcher) List(ctx context.Context, suffix string) ([]string, error) {
	prefix := ""
	if f.prefix != "" {
		prefix = f.prefix + "/"
	}
	var names []string
	var token *string
	for {
		out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(f.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", f.bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" && strings.HasSuffix(name, suffix) {
				names = append(names, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(names)
	return names, nil
}

// Fetch returns the local path of name, downloading it first when it is
// not cached. Downloads go to a temporary file that is renamed into place,
// so an interrupted fetch never leaves a partial file behind.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	local := filepath.Join(f.cacheDir, filepath.FromSlash(clean))
	if _, err := os.Stat(local); err == nil {
		f.logger.Debug("cache hit", "name", name)
		return local, nil
	}

	key := f.key(name)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return "", fmt.Errorf("s3://%s/%s: %w", f.bucket, key, ErrNotFound)
		}
		return "", fmt.Errorf("get s3://%s/%s: %w", f.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(local), ".fetch-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), local)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	f.logger.Info("fetched observational data", "key", key, "bytes", n, "path", local)
	return local, nil
}

// FetchAll fetches names with at most parallelism downloads at once and
// returns the local paths in the order of names.
func (f *Fetcher) FetchAll(ctx context.Context, names []string, parallelism int) ([]string, error) {
	paths := make([]string, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallelism, 1))
	for i, name := range names {
		g.Go(func() error {
			p, err := f.Fetch(ctx, name)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
