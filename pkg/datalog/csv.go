package datalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/stevensll/ee90/pkg/control"
)

// Layout selects the CSV columns.
type Layout int

const (
	// LayoutPID writes Time,Temperature,DAC,Error,Integral.
	LayoutPID Layout = iota
	// LayoutOnOff writes Time,Temperature.
	LayoutOnOff
)

func (l Layout) header() []string {
	if l == LayoutOnOff {
		return []string{"Time", "Temperature"}
	}
	return []string{"Time", "Temperature", "DAC", "Error", "Integral"}
}

func (l Layout) prefix() string {
	if l == LayoutOnOff {
		return "on_off_data"
	}
	return "temp_data_pid"
}

// FileName returns the log name for a run started at t, e.g.
// temp_data_pid_2024_03_01_12_00_00.csv.
func (l Layout) FileName(t time.Time) string {
	return l.prefix() + t.Format("_2006_01_02_15_04_05") + ".csv"
}

// CSV writes records as CSV rows, Time in seconds since the run start.
type CSV struct {
	layout Layout
	w      *csv.Writer
	closer io.Closer
}

// NewCSV writes the header to w. Close closes w if it is an io.Closer.
func NewCSV(w io.Writer, layout Layout) (*CSV, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(layout.header()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	c := &CSV{layout: layout, w: cw}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c, nil
}

// CreateCSV creates dir if needed and opens a timestamped log file in it.
func CreateCSV(dir string, layout Layout, started time.Time) (*CSV, string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, layout.FileName(started))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}
	c, err := NewCSV(f, layout)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	return c, path, nil
}

// Write appends one row and flushes it so a crashed run keeps its data.
func (c *CSV) Write(rec control.Record) error {
	row := []string{
		formatFloat(rec.Elapsed.Seconds()),
		formatFloat(rec.Temperature),
	}
	if c.layout == LayoutPID {
		row = append(row,
			strconv.Itoa(rec.Code),
			formatFloat(rec.Error),
			formatFloat(rec.Integral),
		)
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes pending rows and closes the underlying writer.
func (c *CSV) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
