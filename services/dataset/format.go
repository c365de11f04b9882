package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Row represents a single exported row of data with named fields.
type Row map[string]interface{}

// DataFormat specifies an export file format.
type DataFormat int

const (
	DataFormatUnspecified DataFormat = iota
	DataFormatCSV
	DataFormatJSONL
	DataFormatParquet
	DataFormatJSON
)

// String returns the format's canonical name, which doubles as its
// file extension.
func (f DataFormat) String() string {
	switch f {
	case DataFormatCSV:
		return "csv"
	case DataFormatJSONL:
		return "jsonl"
	case DataFormatParquet:
		return "parquet"
	case DataFormatJSON:
		return "json"
	}
	return "unspecified"
}

// ParseDataFormat maps a format name to a DataFormat.
func ParseDataFormat(s string) (DataFormat, error) {
	switch strings.ToLower(s) {
	case "csv":
		return DataFormatCSV, nil
	case "jsonl":
		return DataFormatJSONL, nil
	case "parquet":
		return DataFormatParquet, nil
	case "json":
		return DataFormatJSON, nil
	}
	return DataFormatUnspecified, fmt.Errorf("unsupported format: %s", s)
}

// CSVOptions contains CSV-specific writing options.
type CSVOptions struct {
	Delimiter rune
	HasHeader bool
}

// DefaultCSVOptions returns sensible defaults for CSV output.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		HasHeader: true,
	}
}

// Writer writes rows in a specific format.
type Writer interface {
	// Write writes rows to the writer.
	Write(w io.Writer, rows []Row, opts CSVOptions) error
}

// NewWriter creates a writer for the given format.
func NewWriter(format DataFormat) (Writer, error) {
	switch format {
	case DataFormatCSV:
		return &CSVWriter{}, nil
	case DataFormatJSONL:
		return &JSONLWriter{}, nil
	case DataFormatJSON:
		return &JSONWriter{}, nil
	case DataFormatParquet:
		return &ParquetWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// columnNames collects the union of field names across rows in sorted
// order, so repeated exports of the same data are byte-identical.
func columnNames(rows []Row) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CSVWriter writes data as CSV.
type CSVWriter struct{}

// Write writes rows as CSV.
func (w *CSVWriter) Write(wr io.Writer, rows []Row, opts CSVOptions) error {
	if len(rows) == 0 {
		return nil
	}

	writer := csv.NewWriter(wr)
	if opts.Delimiter != 0 {
		writer.Comma = opts.Delimiter
	}
	defer writer.Flush()

	headers := columnNames(rows)
	if opts.HasHeader {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for i, row := range rows {
		record := make([]string, len(headers))
		for j, h := range headers {
			if v, ok := row[h]; ok && v != nil {
				record[j] = fmt.Sprintf("%v", v)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	return nil
}

// JSONLWriter writes data as JSON Lines.
type JSONLWriter struct{}

// Write writes rows as JSONL.
func (w *JSONLWriter) Write(wr io.Writer, rows []Row, opts CSVOptions) error {
	encoder := json.NewEncoder(wr)
	for i, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}
	return nil
}

// JSONWriter writes data as a JSON array.
type JSONWriter struct{}

// Write writes rows as a JSON array.
func (w *JSONWriter) Write(wr io.Writer, rows []Row, opts CSVOptions) error {
	encoder := json.NewEncoder(wr)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

// ParquetWriter writes data as Parquet.
type ParquetWriter struct{}

// Write writes rows as Parquet. The schema is derived from the rows:
// every column is optional, typed after the first non-nil value seen.
func (w *ParquetWriter) Write(wr io.Writer, rows []Row, opts CSVOptions) error {
	if len(rows) == 0 {
		return nil
	}

	schema, err := parquetSchemaFor(rows)
	if err != nil {
		return err
	}

	genericRows := make([]map[string]any, len(rows))
	for i, row := range rows {
		genericRows[i] = map[string]any(row)
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[map[string]any](&buf, schema)

	if _, err := writer.Write(genericRows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	_, err = io.Copy(wr, &buf)
	return err
}

func parquetSchemaFor(rows []Row) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, name := range columnNames(rows) {
		node, err := parquetNodeFor(rows, name)
		if err != nil {
			return nil, err
		}
		group[name] = parquet.Optional(node)
	}
	return parquet.NewSchema("rows", group), nil
}

func parquetNodeFor(rows []Row, name string) (parquet.Node, error) {
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case string:
			return parquet.String(), nil
		case bool:
			return parquet.Leaf(parquet.BooleanType), nil
		case float32, float64:
			return parquet.Leaf(parquet.DoubleType), nil
		case int, int32, int64:
			return parquet.Leaf(parquet.Int64Type), nil
		default:
			return nil, fmt.Errorf("unsupported parquet column type %T for %s", v, name)
		}
	}
	// All-nil column; string is the safe fallback.
	return parquet.String(), nil
}
