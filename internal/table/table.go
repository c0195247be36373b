// Package table reads tab-separated variant exports into ordered rows with
// inferred column types.
package table

import (
	"fmt"
)

// Missing replaces NA-like tokens in loaded values.
const Missing = "."

// Type is the inferred type of a column.
type Type string

const (
	String  Type = "String"
	Integer Type = "Integer"
	Float   Type = "Float"
	Boolean Type = "Boolean"
)

// Column is a named, typed table column.
type Column struct {
	Name string
	Type Type
}

// Table is a loaded source table. Rows keep file order until sorted.
type Table struct {
	Path    string
	Columns []Column
	Rows    []Row

	index map[string]int
}

// Row is one data line of a table.
type Row struct {
	// Line is the 1-based line number in the source file.
	Line   int
	values []string
	index  map[string]int
}

// Get returns the value of the named column.
func (r Row) Get(column string) (string, bool) {
	i, ok := r.index[column]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Values returns the row values in column order.
func (r Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ParseError represents an error parsing a table file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
