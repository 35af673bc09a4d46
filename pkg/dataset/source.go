package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	classpathPrefix = "classpath:"
	filePrefix      = "file:"
	s3Prefix        = "s3://"
)

// DefaultSearchPaths are tried, in order, for classpath: locations.
var DefaultSearchPaths = []string{".", "data", "resources"}

// S3Config holds credentials for s3:// locations.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Opener resolves dataset locations: plain paths, file: and classpath:
// prefixes, and s3://bucket/key objects. Sources ending in .gz or .zst are
// decompressed by Open.
type Opener struct {
	SearchPaths []string
	S3          S3Config

	once   sync.Once
	client *minio.Client
	err    error
}

// NewOpener returns an Opener with the default search paths.
func NewOpener(s3 S3Config) *Opener {
	return &Opener{SearchPaths: DefaultSearchPaths, S3: s3}
}

// LocalPath resolves location to a file path. ok is false for remote or
// missing sources.
func (o *Opener) LocalPath(location string) (string, bool) {
	switch {
	case strings.HasPrefix(location, s3Prefix):
		return "", false
	case strings.HasPrefix(location, classpathPrefix):
		name := strings.TrimPrefix(strings.TrimPrefix(location, classpathPrefix), "/")
		for _, dir := range o.SearchPaths {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, true
			}
		}
		return "", false
	default:
		p := strings.TrimPrefix(location, filePrefix)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
		return "", false
	}
}

// OpenRaw returns the stored bytes of location without decompressing them.
func (o *Opener) OpenRaw(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: no dataset configured", ErrSourceNotFound)
	}
	if strings.HasPrefix(location, s3Prefix) {
		return o.openS3(ctx, location)
	}

	p, ok := o.LocalPath(location)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, location)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, location)
		}
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	return f, nil
}

// Open returns the decoded contents of location.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	raw, err := o.OpenRaw(ctx, location)
	if err != nil {
		return nil, err
	}
	return decode(location, raw, raw)
}

// Tee is a decoded dataset whose raw bytes are copied to a writer as the
// decoder consumes them.
type Tee struct {
	io.ReadCloser
	raw io.Reader
}

// Finish reads the raw bytes the decoder left unread, so the writer has
// seen the whole stored source.
func (t *Tee) Finish() error {
	if _, err := io.Copy(io.Discard, t.raw); err != nil {
		return fmt.Errorf("reading dataset tail: %w", err)
	}
	return nil
}

// OpenTee is Open with every stored byte also written to w.
func (o *Opener) OpenTee(ctx context.Context, location string, w io.Writer) (*Tee, error) {
	raw, err := o.OpenRaw(ctx, location)
	if err != nil {
		return nil, err
	}
	teed := io.TeeReader(raw, w)
	dec, err := decode(location, teed, raw)
	if err != nil {
		return nil, err
	}
	return &Tee{ReadCloser: dec, raw: teed}, nil
}

// decode wraps r in the decompressor location's extension calls for.
// closer is the underlying source and is closed on failure.
func decode(location string, r io.Reader, closer io.Closer) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("opening gzip dataset: %w", err)
		}
		return &stacked{Reader: zr, closers: []io.Closer{zr, closer}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("opening zstd dataset: %w", err)
		}
		return &stacked{Reader: zr, closers: []io.Closer{zstdCloser{zr}, closer}}, nil
	default:
		return &stacked{Reader: r, closers: []io.Closer{closer}}, nil
	}
}

func (o *Opener) s3Client() (*minio.Client, error) {
	o.once.Do(func() {
		if o.S3.Endpoint == "" {
			o.err = errors.New("s3 dataset source requires an endpoint")
			return
		}
		o.client, o.err = minio.New(o.S3.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(o.S3.AccessKey, o.S3.SecretKey, ""),
			Secure: o.S3.UseSSL,
			Region: o.S3.Region,
		})
	})
	return o.client, o.err
}

func (o *Opener) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Prefix), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q, want s3://bucket/key", location)
	}
	client, err := o.s3Client()
	if err != nil {
		return nil, err
	}

	if _, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, location)
		}
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", location, err)
	}
	return obj, nil
}

// stacked closes a decoder and the raw source under it.
type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}
