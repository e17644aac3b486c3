package cloudwriter

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client the writer needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	ctx        context.Context
	client     PutObjectAPI
	bucket     string
	objectPath string
	buffer     bytes.Buffer
	closed     bool
}

type S3WriterFactory struct {
	client PutObjectAPI
}

func NewS3WriterFactory(ctx context.Context, region string) (*S3WriterFactory, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3WriterFactory{client: s3.NewFromConfig(cfg)}, nil
}

func NewS3WriterFactoryWithClient(client PutObjectAPI) *S3WriterFactory {
	return &S3WriterFactory{client: client}
}

func (f *S3WriterFactory) NewWriter(ctx context.Context, bucket, objectPath string) (CloudWriter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("no bucket for %s", objectPath)
	}
	return &S3Writer{
		ctx:        ctx,
		client:     f.client,
		bucket:     bucket,
		objectPath: objectPath,
	}, nil
}

func (w *S3Writer) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed object %s", w.objectPath)
	}
	return w.buffer.Write(data)
}

func (w *S3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	contentType := mime.TypeByExtension(path.Ext(w.objectPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.objectPath),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("unable to upload %s to S3: %w", w.objectPath, err)
	}
	return nil
}
