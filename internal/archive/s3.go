// Package archive provides an optional, application-level sink that
// persists BinaryMessage payloads received over a Connection to S3. It sits
// outside the transport core by design (wired only from cmd/wireserver)
// since object storage is an application concern, not a pipeline one.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/meshwire/corewire/internal/wire"
)

// S3Sink uploads each BinaryMessage it's given to a bucket, prefixed by the
// configured key prefix. Uploads follow the same write-then-commit
// discipline as a local atomic writer: the object lands at a ".tmp" key
// first, then CopyObject promotes it to its final name and DeleteObject
// removes the temporary key, so a reader never observes a partially
// uploaded object under its final name.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Sink loads the default AWS credential chain for region and builds a
// Sink bound to bucket/prefix.
func NewS3Sink(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "archive_s3"),
	}, nil
}

// Archive uploads msg.Data under a timestamped key derived from msg.Name.
// It is meant to be called from an EventHooks.OnRead handler; it never
// blocks the caller on a slow upload for longer than ctx allows.
func (s *S3Sink) Archive(ctx context.Context, msg *wire.BinaryMessage) error {
	finalKey := s.objectKey(msg.Name)
	tmpKey := finalKey + ".tmp"

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(tmpKey),
		Body:   bytes.NewReader(msg.Data),
	}); err != nil {
		return fmt.Errorf("uploading %s to %s: %w", msg.Name, tmpKey, err)
	}

	copySource := path.Join(s.bucket, tmpKey)
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(finalKey),
		CopySource: aws.String(copySource),
	}); err != nil {
		return fmt.Errorf("promoting %s to %s: %w", tmpKey, finalKey, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(tmpKey),
	}); err != nil {
		s.logger.Warn("leaving orphaned tmp object behind", "key", tmpKey, "err", err)
	}

	s.logger.Info("archived binary message", "name", msg.Name, "key", finalKey, "bytes", len(msg.Data))
	return nil
}

func (s *S3Sink) objectKey(name string) string {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05.000")
	return path.Join(s.prefix, stamp+"-"+name)
}
