// Package pipeline loads and cleans the tabular training dataset.
package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrMissingColumn   = errors.New("missing column")
)

var unnamedColumn = regexp.MustCompile(`^Unnamed: \d+$`)

// Dataset is a header plus string cells, one slice per row.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// LoadOptions controls how a dataset file is read.
type LoadOptions struct {
	// Encoding is a WHATWG encoding label such as "latin1" or
	// "windows-1252". Empty means UTF-8. Only used for CSV.
	Encoding string
	// Sheet selects the worksheet of an XLSX file; empty means the first one.
	Sheet string
}

// LoadDataset reads a CSV or XLSX file (chosen by extension) with a header
// row. A missing file yields ErrDatasetNotFound.
func LoadDataset(path string, opts LoadOptions) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrDatasetNotFound, path)
		}
		return nil, errors.Wrap(err, "stat dataset")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadXLSX(path, opts.Sheet)
	default:
		return loadCSV(path, opts.Encoding)
	}
}

func loadCSV(path, encodingName string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer file.Close()

	decoder, err := decoderFor(encodingName)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(transform.NewReader(file, decoder))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Errorf("dataset %s is empty", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read dataset header")
	}

	ds := &Dataset{Columns: append([]string(nil), header...)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read dataset")
		}
		ds.Rows = append(ds.Rows, record)
	}
	return ds, nil
}

func decoderFor(name string) (transform.Transformer, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown dataset encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

func loadXLSX(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("sheet %q is empty", sheet)
	}

	ds := &Dataset{Columns: rows[0]}
	for _, row := range rows[1:] {
		// GetRows drops trailing empty cells.
		for len(row) < len(ds.Columns) {
			row = append(row, "")
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// Shape returns the number of rows and columns.
func (d *Dataset) Shape() (int, int) {
	return len(d.Rows), len(d.Columns)
}

// Column returns the index of a named column.
func (d *Dataset) Column(name string) (int, error) {
	for i, column := range d.Columns {
		if column == name {
			return i, nil
		}
	}
	return -1, errors.Wrap(ErrMissingColumn, name)
}

// DropUnnamedIndex removes index columns written without a header, such as
// the leading "Unnamed: 0" column of a pandas export.
func (d *Dataset) DropUnnamedIndex() int {
	keep := make([]int, 0, len(d.Columns))
	for i, column := range d.Columns {
		name := strings.TrimSpace(column)
		if name == "" || unnamedColumn.MatchString(name) {
			continue
		}
		keep = append(keep, i)
	}
	dropped := len(d.Columns) - len(keep)
	if dropped == 0 {
		return 0
	}

	d.Columns = pick(d.Columns, keep)
	for i, row := range d.Rows {
		d.Rows[i] = pick(row, keep)
	}
	return dropped
}

func pick(row []string, keep []int) []string {
	out := make([]string, 0, len(keep))
	for _, idx := range keep {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// Records returns the rows as column name to cell maps.
func (d *Dataset) Records() []map[string]string {
	out := make([]map[string]string, len(d.Rows))
	for i, row := range d.Rows {
		record := make(map[string]string, len(d.Columns))
		for j, column := range d.Columns {
			if j < len(row) {
				record[column] = row[j]
			}
		}
		out[i] = record
	}
	return out
}
