package cloudwriter

import (
	"context"
	"io"
)

// CloudWriter buffers an object and uploads it on Close.
type CloudWriter interface {
	io.WriteCloser
}

type CloudWriterFactory interface {
	NewWriter(ctx context.Context, bucket, objectPath string) (CloudWriter, error)
}
