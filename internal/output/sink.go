package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/cloudwriter"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("output")

// Sink receives finished reports.
type Sink interface {
	Write(ctx context.Context, report *analytics.Report) error
	Close() error
}

// Fanout writes every report to all of its sinks. A failing sink does not
// stop the others; the errors are joined.
type Fanout []Sink

func (f Fanout) Write(ctx context.Context, report *analytics.Report) error {
	var errs []error
	for _, s := range f {
		if err := s.Write(ctx, report); err != nil {
			log.Errorf("sink %T: %v", s, err)
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// partitionPath lays files out the way downstream Hive-style readers expect.
func partitionPath(t time.Time) string {
	t = t.UTC()
	year, month, day := t.Date()
	return fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d", year, month, day, t.Hour())
}

// objectPath is folder/topic/partition/<run id>.<ext>, relative to the
// destination root.
func objectPath(folder, topic string, report *analytics.Report, ext string) string {
	return filepath.ToSlash(filepath.Join(folder, topic, partitionPath(report.GeneratedAt), report.RunID+"."+ext))
}

// Destination creates the files a sink writes into.
type Destination interface {
	Create(ctx context.Context, relPath string) (io.WriteCloser, error)
}

// LocalDestination writes under a base directory.
type LocalDestination struct {
	BasePath string
}

func (d LocalDestination) Create(_ context.Context, relPath string) (io.WriteCloser, error) {
	full := filepath.Join(d.BasePath, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return nil, err
	}
	return os.Create(full)
}

// CloudDestination uploads each file as one object.
type CloudDestination struct {
	Factory cloudwriter.CloudWriterFactory
	Bucket  string
}

func (d CloudDestination) Create(ctx context.Context, relPath string) (io.WriteCloser, error) {
	w, err := d.Factory.NewWriter(ctx, d.Bucket, relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
	}
	return w, nil
}
