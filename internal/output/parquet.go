package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/cloudwriter"
	"github.com/samber/lo"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetParallelism = 4

// ParquetSink writes one parquet file per tabular topic, either under a
// local base path or to object storage.
type ParquetSink struct {
	basePath           string
	folder             string
	cloudWriterFactory cloudwriter.CloudWriterFactory
	cloudBucketName    string
}

func NewParquetSink(basePath, folder string) *ParquetSink {
	return &ParquetSink{basePath: basePath, folder: folder}
}

func NewCloudParquetSink(factory cloudwriter.CloudWriterFactory, bucket, folder string) *ParquetSink {
	return &ParquetSink{folder: folder, cloudWriterFactory: factory, cloudBucketName: bucket}
}

func (p *ParquetSink) Write(ctx context.Context, report *analytics.Report) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}
	rows := lo.Filter(msgs, func(m Message, _ int) bool { return m.Row != nil })
	byTopic := lo.GroupBy(rows, func(m Message) string { return m.Topic })

	topics := lo.Keys(byTopic)
	sort.Strings(topics)
	for _, topic := range topics {
		if err := p.writeTopic(ctx, topic, report, byTopic[topic]); err != nil {
			return fmt.Errorf("parquet %s: %w", topic, err)
		}
	}
	return nil
}

func (p *ParquetSink) writeTopic(ctx context.Context, topic string, report *analytics.Report, msgs []Message) error {
	proto, err := rowPrototype(topic)
	if err != nil {
		return err
	}
	fw, err := p.createFile(ctx, objectPath(p.folder, topic, report, "parquet"))
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, proto, parquetParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, m := range msgs {
		if err := pw.Write(m.Row); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finish file: %w", err)
	}
	return fw.Close()
}

func (p *ParquetSink) createFile(ctx context.Context, relPath string) (source.ParquetFile, error) {
	if p.cloudWriterFactory != nil {
		cloudWriter, err := p.cloudWriterFactory.NewWriter(ctx, p.cloudBucketName, relPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return NewCloudParquetFile(cloudWriter), nil
	}

	fullPath := filepath.Join(p.basePath, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, err
	}
	fw, err := local.NewLocalFileWriter(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, nil
}

func (p *ParquetSink) Close() error {
	return nil
}

// CloudParquetFile adapts a write-only cloud object to parquet's file
// interface. Only forward writes are supported.
type CloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func NewCloudParquetFile(cloudWriter cloudwriter.CloudWriter) *CloudParquetFile {
	return &CloudParquetFile{cloudWriter: cloudWriter}
}

func (c *CloudParquetFile) Open(string) (source.ParquetFile, error) {
	return c, nil
}

func (c *CloudParquetFile) Create(string) (source.ParquetFile, error) {
	return c, nil
}

func (c *CloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *CloudParquetFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *CloudParquetFile) Write(b []byte) (int, error) {
	n, err := c.cloudWriter.Write(b)
	c.offset += int64(n)
	return n, err
}

func (c *CloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}
