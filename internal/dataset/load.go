// Package dataset reads the listing and client tables and writes the match reports.
package dataset

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/encoding/charmap"
)

// ErrMissingInput reports a dataset that is absent or cannot be read.
var ErrMissingInput = errors.New("missing input")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Format is the on-disk format of a dataset.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// FormatOf picks the format from the file extension. Unknown extensions are read as CSV.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Load reads every record of the dataset at path. table names the SQLite table to read and is
// ignored for the other formats.
func Load(path, table string) ([]map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrMissingInput)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingInput, path, err)
	}

	switch FormatOf(path) {
	case FormatJSON:
		return loadJSON(path)
	case FormatSQLite:
		return loadSQLite(path, table)
	default:
		return loadCSV(path)
	}
}

func loadCSV(path string) ([]map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMissingInput, path, err)
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	if !utf8.Valid(b) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return nil, fmt.Errorf("decode %s as latin-1: %w", path, err)
		}
		b = decoded
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var records []map[string]any
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		record := make(map[string]any, len(header))
		for i, key := range header {
			if i < len(row) {
				record[key] = row[i]
			} else {
				record[key] = nil
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func loadJSON(path string) ([]map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMissingInput, path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return records, nil
}

// sqliteDSN builds a file URI for path. The path is escaped, so "?", "#" and "%" in file
// names reach SQLite intact.
func sqliteDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: url.Values{"mode": {mode}}.Encode()}
	return u.String(), nil
}

func loadSQLite(path, table string) ([]map[string]any, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("no table given for %s", path)
	}

	dsn, err := sqliteDSN(path, "ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingInput, path, err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMissingInput, path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT * FROM "` + strings.ReplaceAll(table, `"`, `""`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("query %s in %s: %w", table, path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return records, nil
}
