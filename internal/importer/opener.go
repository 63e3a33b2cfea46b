package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// ObjectGetter is the S3 call used for s3:// sources.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener resolves an import location to a readable stream. Local paths are
// read through fs; s3://bucket/key paths through the S3 client.
type Opener struct {
	fs afero.Fs
	s3 ObjectGetter
}

// NewOpener builds an opener rooted at baseDir. s3 may be nil, in which
// case s3:// paths are rejected.
func NewOpener(baseDir string, s3 ObjectGetter) *Opener {
	return NewOpenerFs(afero.NewBasePathFs(afero.NewOsFs(), baseDir), s3)
}

func NewOpenerFs(fs afero.Fs, s3 ObjectGetter) *Opener {
	return &Opener{fs: fs, s3: s3}
}

// Open returns the stream for location and the name used to detect its
// format.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, string, error) {
	if bucket, key, ok := splitS3(location); ok {
		if o.s3 == nil {
			return nil, "", fmt.Errorf("%w: s3 sources are not configured", domain.ErrInvalidInput)
		}
		out, err := o.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
		}
		return out.Body, key, nil
	}

	f, err := o.fs.Open(location)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", location, err)
	}
	return f, location, nil
}

func splitS3(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
