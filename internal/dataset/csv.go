package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Header is the column layout of dataset CSV files.
var Header = []string{"zone_id", "timestamp", "demand", "drivers", "inventory", "weather", "availability"}

// Write encodes observations as CSV with a header row.
func Write(w io.Writer, obs []models.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, o := range obs {
		record := []string{
			o.ZoneID,
			o.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(o.Demand, 'f', -1, 64),
			strconv.FormatFloat(o.Drivers, 'f', -1, 64),
			strconv.FormatFloat(o.Inventory, 'f', -1, 64),
			o.Weather,
			strconv.FormatFloat(o.Availability, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes observations to path, creating parent directories.
func Save(path string, obs []models.Observation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	if err := Write(f, obs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes observations from CSV. Columns are located by header name, so
// extra columns and any column order are accepted.
func Read(r io.Reader) ([]models.Observation, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, col := range Header {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []models.Observation
	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		obs, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// Load reads a CSV dataset from path.
func Load(path string) ([]models.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseRecord(record []string, idx map[string]int) (models.Observation, error) {
	field := func(name string) string { return strings.TrimSpace(record[idx[name]]) }

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return models.Observation{}, err
	}
	nums := make(map[string]float64, 4)
	for _, col := range []string{"demand", "drivers", "inventory", "availability"} {
		v, err := strconv.ParseFloat(field(col), 64)
		if err != nil {
			return models.Observation{}, fmt.Errorf("parsing %s %q: %w", col, field(col), err)
		}
		nums[col] = v
	}
	return models.Observation{
		ZoneID:       field("zone_id"),
		Timestamp:    ts,
		Demand:       nums["demand"],
		Drivers:      nums["drivers"],
		Inventory:    nums["inventory"],
		Weather:      field("weather"),
		Availability: nums["availability"],
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
}
