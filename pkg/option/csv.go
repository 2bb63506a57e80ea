package option

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInputLoad is returned when the input table cannot be loaded. It is fatal
// to a run.
var ErrInputLoad = errors.New("failed to load input table")

const utf8BOM = "\ufeff"

// LoadCSV reads a dataset from the CSV file at path.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputLoad, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a dataset. The header must contain the design_option column
// exactly once; every record must have as many fields as the header.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty table", ErrInputLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrInputLoad, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	idIdx := -1
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		if seen[col] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInputLoad, col)
		}
		seen[col] = true
		if col == IDColumn {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: missing %q column", ErrInputLoad, IDColumn)
	}

	ds := &Dataset{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInputLoad, err)
		}

		line, _ := reader.FieldPos(0)
		id := record[idIdx]
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: line %d: empty %s", ErrInputLoad, line, IDColumn)
		}

		fields := make(map[string]string, len(header)-1)
		for i, col := range header {
			if i != idIdx {
				fields[col] = record[i]
			}
		}
		ds.Options = append(ds.Options, DesignOption{ID: id, Fields: fields})
	}

	return ds, nil
}

// WriteCSV writes the result table to path, creating parent directories.
func WriteCSV(path string, table *ResultTable) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := EncodeCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes the result table: input columns in input order plus the
// metric column. Absent metrics are written as empty cells.
func EncodeCSV(w io.Writer, table *ResultTable) error {
	cw := csv.NewWriter(w)
	cols := table.OutputColumns()

	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range table.Rows {
		for i, col := range cols {
			if col == MetricColumn {
				record[i] = row.Metric.String()
				continue
			}
			record[i] = row.Option.Field(col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.Option.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
