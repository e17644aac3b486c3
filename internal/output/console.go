package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chrisdamba/menustats/internal/analytics"
)

// ConsoleSink prints the full report as indented JSON.
type ConsoleSink struct {
	w io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Write(_ context.Context, report *analytics.Report) error {
	enc := json.NewEncoder(c.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write to console: %w", err)
	}
	return nil
}

func (c *ConsoleSink) Close() error {
	return nil
}
