package table

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Locus is a sort key: contig name and 1-based position.
type Locus struct {
	Chrom string
	Pos   int64
}

// CompareChrom orders contigs naturally: numbered contigs first by number,
// then X, Y and mitochondrial, then everything else by name. A leading
// "chr" is ignored.
func CompareChrom(a, b string) int {
	ra, na := chromRank(a)
	rb, nb := chromRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	if ra == 0 && na != nb {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

func chromRank(c string) (rank int, num int) {
	name := c
	if len(name) > 3 && strings.EqualFold(name[:3], "chr") {
		name = name[3:]
	}
	if n, err := strconv.Atoi(name); err == nil {
		return 0, n
	}
	switch strings.ToUpper(name) {
	case "X":
		return 1, 0
	case "Y":
		return 2, 0
	case "M", "MT":
		return 3, 0
	}
	return 4, 0
}

// CompareLocus orders loci by contig then position.
func CompareLocus(a, b Locus) int {
	if c := CompareChrom(a.Chrom, b.Chrom); c != 0 {
		return c
	}
	return cmp.Compare(a.Pos, b.Pos)
}

// SortRows stably sorts rows by the locus key returns for each of them.
// Rows with equal loci keep their relative order.
func SortRows(rows []Row, key func(Row) (Locus, error)) error {
	type keyed struct {
		row   Row
		locus Locus
	}
	items := make([]keyed, len(rows))
	for i, r := range rows {
		k, err := key(r)
		if err != nil {
			return fmt.Errorf("sort key for line %d: %w", r.Line, err)
		}
		items[i] = keyed{row: r, locus: k}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		return CompareLocus(a.locus, b.locus)
	})
	for i := range items {
		rows[i] = items[i].row
	}
	return nil
}

// SortByColumns stably sorts the table rows by the given contig and position
// columns.
func (t *Table) SortByColumns(chromColumn, posColumn string) error {
	if _, ok := t.index[chromColumn]; !ok {
		return fmt.Errorf("sort column %q not found", chromColumn)
	}
	if _, ok := t.index[posColumn]; !ok {
		return fmt.Errorf("sort column %q not found", posColumn)
	}
	return SortRows(t.Rows, func(r Row) (Locus, error) {
		chrom, _ := r.Get(chromColumn)
		raw, _ := r.Get(posColumn)
		pos, err := ParsePosition(raw)
		if err != nil {
			return Locus{}, &ParseError{Line: r.Line, Message: err.Error()}
		}
		return Locus{Chrom: chrom, Pos: pos}, nil
	})
}

// ParsePosition parses a coordinate written as an integer or as an integral
// float ("1500.0").
func ParsePosition(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return int64(f), nil
}
