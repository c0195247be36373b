package convert

import (
	"fmt"
	"strings"
)

// UnresolvableSampleNameError is returned when an input filename matches
// none of the configured suffixes.
type UnresolvableSampleNameError struct {
	Path     string
	Suffixes []string
}

func (e *UnresolvableSampleNameError) Error() string {
	return fmt.Sprintf("cannot determine sample name from %s: filename ends with none of [%s]",
		e.Path, strings.Join(e.Suffixes, ", "))
}

// RowError locates a conversion failure at a source line and VCF field.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
