package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/drsanjula/iOSBackupExplorer/internal/config"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Uploader is the part of manager.Uploader the S3 sink uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink streams exports to objects under a key prefix. Payloads are piped
// straight into a multipart upload without staging on disk.
type S3Sink struct {
	ctx      context.Context
	uploader Uploader
	bucket   string
	prefix   string
}

var _ ibex.Sink = (*S3Sink)(nil)

// NewS3Sink creates a sink over an existing uploader. Uploads run under ctx.
func NewS3Sink(ctx context.Context, uploader Uploader, bucket, prefix string) *S3Sink {
	return &S3Sink{ctx: ctx, uploader: uploader, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3SinkFromConfig builds the AWS client from cfg. Static credentials are
// used when both key fields are set; otherwise the default chain applies.
// dest is appended to the configured prefix.
func NewS3SinkFromConfig(ctx context.Context, cfg config.SinkConfig, dest string) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 sink requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	prefix := path.Join(strings.Trim(cfg.S3Prefix, "/"), strings.Trim(dest, "/"))
	if prefix == "." {
		prefix = ""
	}
	return NewS3Sink(ctx, manager.NewUploader(client), cfg.S3Bucket, prefix), nil
}

func (s *S3Sink) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Create starts an upload for name. The object exists once Close returns nil.
func (s *S3Sink) Create(name string) (io.WriteCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &s3Object{pw: pw, done: make(chan error, 1)}
	key := s.key(name)
	go func() {
		_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		// Unblock a writer still feeding a failed upload.
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

type s3Object struct {
	pw   *io.PipeWriter
	done chan error
}

func (o *s3Object) Write(p []byte) (int, error) { return o.pw.Write(p) }

// errUploadAborted fails the request body so the uploader gives up
// instead of storing a truncated object.
var errUploadAborted = errors.New("upload aborted")

var _ ibex.Aborter = (*s3Object)(nil)

// Abort cancels the upload and waits for the uploader to stop.
func (o *s3Object) Abort() error {
	o.pw.CloseWithError(errUploadAborted)
	<-o.done
	return nil
}

func (o *s3Object) Close() error {
	o.pw.Close()
	if err := <-o.done; err != nil {
		return fmt.Errorf("uploading object: %w", err)
	}
	return nil
}
