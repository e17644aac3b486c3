package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/samber/lo"
)

// CSVSink writes one CSV file per tabular topic. Columns are the row's
// JSON keys in sorted order.
type CSVSink struct {
	dest   Destination
	folder string
}

func NewCSVSink(dest Destination, folder string) *CSVSink {
	return &CSVSink{dest: dest, folder: folder}
}

func (c *CSVSink) Write(ctx context.Context, report *analytics.Report) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}
	rows := lo.Filter(msgs, func(m Message, _ int) bool { return m.Row != nil })
	byTopic := lo.GroupBy(rows, func(m Message) string { return m.Topic })

	topics := lo.Keys(byTopic)
	sort.Strings(topics)
	for _, topic := range topics {
		data, err := encodeCSV(byTopic[topic])
		if err != nil {
			return fmt.Errorf("encode %s: %w", topic, err)
		}
		path := objectPath(c.folder, topic, report, "csv")
		f, err := c.dest.Create(ctx, path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}

func encodeCSV(msgs []Message) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	var headers []string
	for _, m := range msgs {
		dec := json.NewDecoder(bytes.NewReader(m.Value))
		dec.UseNumber()
		var record map[string]interface{}
		if err := dec.Decode(&record); err != nil {
			return nil, err
		}
		if headers == nil {
			headers = lo.Keys(record)
			sort.Strings(headers)
			if err := w.Write(headers); err != nil {
				return nil, err
			}
		}
		row := make([]string, len(headers))
		for i, header := range headers {
			if value, ok := record[header]; ok && value != nil {
				row[i] = fmt.Sprintf("%v", value)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (c *CSVSink) Close() error {
	return nil
}
