package output

import (
	"context"
	"fmt"

	"github.com/chrisdamba/menustats/internal/analytics"
)

// JSONSink writes one newline-delimited JSON file per topic and run,
// partitioned by the report's generation hour.
type JSONSink struct {
	dest   Destination
	folder string
}

func NewJSONSink(dest Destination, folder string) *JSONSink {
	return &JSONSink{dest: dest, folder: folder}
}

func (j *JSONSink) Write(ctx context.Context, report *analytics.Report) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}

	files := make(map[string][]byte)
	var order []string
	for _, m := range msgs {
		if _, ok := files[m.Topic]; !ok {
			order = append(order, m.Topic)
		}
		files[m.Topic] = append(append(files[m.Topic], m.Value...), '\n')
	}

	for _, topic := range order {
		path := objectPath(j.folder, topic, report, "json")
		f, err := j.dest.Create(ctx, path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(files[topic]); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		log.Debugf("wrote %s", path)
	}
	return nil
}

func (j *JSONSink) Close() error {
	return nil
}
