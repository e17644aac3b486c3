package output

import (
	"context"
	"fmt"
	"io"

	"github.com/chrisdamba/menustats/internal/cloudwriter"
	"github.com/chrisdamba/menustats/internal/config"
)

// FromConfig opens every sink listed in output.sinks. Sinks opened before a
// failure are closed again.
func FromConfig(ctx context.Context, cfg *config.Config, stdout io.Writer) (Sink, error) {
	var (
		sinks   Fanout
		dest    Destination
		factory cloudwriter.CloudWriterFactory
	)

	switch cfg.Output.Destination {
	case config.DestinationS3:
		f, err := cloudwriter.NewS3WriterFactory(ctx, cfg.CloudStorage.Region)
		if err != nil {
			return nil, err
		}
		factory = f
		dest = CloudDestination{Factory: f, Bucket: cfg.CloudStorage.BucketName}
	default:
		dest = LocalDestination{BasePath: cfg.Output.Path}
	}

	for _, name := range cfg.Output.Sinks {
		var (
			sink Sink
			err  error
		)
		switch name {
		case "console":
			sink = NewConsoleSink(stdout)
		case "json":
			sink = NewJSONSink(dest, cfg.Output.Folder)
		case "csv":
			sink = NewCSVSink(dest, cfg.Output.Folder)
		case "parquet":
			if factory != nil {
				sink = NewCloudParquetSink(factory, cfg.CloudStorage.BucketName, cfg.Output.Folder)
			} else {
				sink = NewParquetSink(cfg.Output.Path, cfg.Output.Folder)
			}
		case "kafka":
			sink, err = NewKafkaSink(cfg.KafkaBrokers(), cfg.Kafka.Topic)
		case "amqp":
			sink, err = NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange)
		case "postgres":
			sink, err = NewPostgresSink(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("output %s: %w", name, err)
		}
		sinks = append(sinks, sink)
	}
	log.Infof("writing reports to %d sink(s): %v", len(sinks), cfg.Output.Sinks)
	return sinks, nil
}
