package table

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// NATokens are the values treated as missing in source tables.
var NATokens = []string{"", "NA", "N/A", "NaN", "nan", "NULL", "null", "#N/A", Missing}

// Load reads a tab-separated file, skipping the first skipRows lines.
// The next line is the header. Both plain and gzipped files are supported.
func Load(path string, skipRows int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer file.Close()

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read table header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek table: %w", err)
	}

	var reader io.Reader = file
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	t, err := Read(reader, skipRows)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// Read parses a table from r. See Load.
func Read(r io.Reader, skipRows int) (*Table, error) {
	br := bufio.NewReader(r)
	lineNumber := 0

	var header []string
	var records [][]string
	var lines []int

	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read line %d: %w", lineNumber+1, err)
		}
		lineNumber++

		if lineNumber <= skipRows {
			continue
		}
		line = strings.TrimRight(line, "\r\n")

		if header == nil {
			header = strings.Split(line, "\t")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			return nil, &ParseError{
				Line:    lineNumber,
				Message: fmt.Sprintf("expected %d columns, found %d", len(header), len(fields)),
			}
		}
		for i, f := range fields {
			if isNA(f) {
				fields[i] = Missing
			}
		}
		records = append(records, fields)
		lines = append(lines, lineNumber)
	}

	if header == nil {
		return nil, &ParseError{Line: lineNumber, Message: "no header line found"}
	}

	columns, err := inferColumns(header, records)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Columns: columns,
		Rows:    make([]Row, len(records)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	for i, rec := range records {
		t.Rows[i] = Row{Line: lines[i], values: rec, index: t.index}
	}
	return t, nil
}

func isNA(v string) bool {
	for _, tok := range NATokens {
		if v == tok {
			return true
		}
	}
	return false
}

// inferColumns detects column types with a dataframe load. Duplicate or
// empty header names are renamed the way the dataframe does it.
func inferColumns(header []string, records [][]string) ([]Column, error) {
	data := make([][]string, 0, len(records)+1)
	data = append(data, header)
	if len(records) == 0 {
		// A dataframe needs at least one row; an all-missing row infers String.
		data = append(data, make([]string, len(header)))
	} else {
		data = append(data, records...)
	}

	df := dataframe.LoadRecords(data,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(NATokens),
	)
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("infer column types: %w", err)
	}

	names := df.Names()
	types := df.Types()
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Type: columnType(types[i])}
	}
	return columns, nil
}

func columnType(t series.Type) Type {
	switch t {
	case series.Int:
		return Integer
	case series.Float:
		return Float
	case series.Bool:
		return Boolean
	}
	return String
}
