package transform

import (
	"fmt"
	"strings"
)

// Placeholder marks an absent allele in source tables ("no base here").
const Placeholder = "-"

// Kind is the shape of a REF/ALT pair as written in a source table.
type Kind int

const (
	SNV Kind = iota
	Deletion
	Insertion
)

func (k Kind) String() string {
	switch k {
	case SNV:
		return "SNV"
	case Deletion:
		return "deletion"
	case Insertion:
		return "insertion"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Alleles is a VCF-legal REF/ALT pair.
type Alleles struct {
	Ref string
	Alt string
}

// Classify determines the kind of a source REF/ALT pair. Pairs that cannot be
// written as a single VCF record with one anchor base are rejected.
func Classify(ref, alt string) (Kind, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	alt = strings.ToUpper(strings.TrimSpace(alt))

	unrepresentable := func(reason string) (Kind, error) {
		return 0, &UnrepresentableAlleleError{Ref: ref, Alt: alt, Reason: reason}
	}

	switch {
	case ref == "" || alt == "" || ref == Missing || alt == Missing:
		return unrepresentable("missing allele")
	case ref == Placeholder && alt == Placeholder:
		return unrepresentable("both alleles are placeholders")
	case ref == Placeholder:
		if !isBases(alt) {
			return unrepresentable("inserted sequence is not a nucleotide string")
		}
		return Insertion, nil
	case alt == Placeholder:
		if !isBases(ref) {
			return unrepresentable("deleted sequence is not a nucleotide string")
		}
		return Deletion, nil
	case !isBases(ref) || !isBases(alt):
		return unrepresentable("allele is not a nucleotide string")
	case len(ref) == 1 && len(alt) == 1:
		return SNV, nil
	case len(ref) != len(alt):
		return unrepresentable("indel without placeholder allele")
	}
	return unrepresentable("multi-base substitutions are not supported")
}

// NormalizeAlleles anchors placeholder-encoded indels on the preceding
// reference base. start is the 1-based position of the first affected base
// in the source table.
//
// Deletions take the base at start-1 as anchor: REF becomes anchor+REF and
// ALT the anchor alone. Insertions take the base at start: REF becomes the
// anchor and ALT anchor+ALT. SNVs are uppercased and need no genome.
func NormalizeAlleles(g Reference, contig string, start int64, ref, alt string) (Alleles, error) {
	kind, err := Classify(ref, alt)
	if err != nil {
		return Alleles{}, err
	}
	ref = strings.ToUpper(strings.TrimSpace(ref))
	alt = strings.ToUpper(strings.TrimSpace(alt))

	switch kind {
	case Deletion:
		anchor, err := g.Base(contig, start-1)
		if err != nil {
			return Alleles{}, fmt.Errorf("anchor base for deletion at %s:%d: %w", contig, start, err)
		}
		return Alleles{Ref: string(anchor) + ref, Alt: string(anchor)}, nil
	case Insertion:
		anchor, err := g.Base(contig, start)
		if err != nil {
			return Alleles{}, fmt.Errorf("anchor base for insertion at %s:%d: %w", contig, start, err)
		}
		return Alleles{Ref: string(anchor), Alt: string(anchor) + alt}, nil
	}
	return Alleles{Ref: ref, Alt: alt}, nil
}

func isBases(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return false
		}
	}
	return true
}

// UnrepresentableAlleleError is returned for REF/ALT pairs outside the
// SNV / placeholder-indel forms.
type UnrepresentableAlleleError struct {
	Ref    string
	Alt    string
	Reason string
}

func (e *UnrepresentableAlleleError) Error() string {
	return fmt.Sprintf("unrepresentable alleles REF=%q ALT=%q: %s", e.Ref, e.Alt, e.Reason)
}

// UnrecognizedCnvTypeError is returned for a CNV type label outside a
// caller's vocabulary.
type UnrecognizedCnvTypeError struct {
	Label  string
	Caller string
}

func (e *UnrecognizedCnvTypeError) Error() string {
	return fmt.Sprintf("unrecognized %s CNV type %q", e.Caller, e.Label)
}
