package vcf

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Problem is one validation finding.
type Problem struct {
	Line    int
	Field   string
	Message string
}

// Report summarizes the validation of a file.
type Report struct {
	Records  int
	Problems []Problem
}

// OK reports whether no problems were found.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Write prints the problems as an aligned table followed by a summary.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Problems) > 0 {
		fmt.Fprintln(tw, "Line\tField\tProblem")
		for _, p := range r.Problems {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Line, p.Field, p.Message)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nValidation Summary:\n  Records:   %d\n  Problems:  %d\n", r.Records, len(r.Problems))
	return err
}

// Validate checks the records of src against the invariants of converted
// files: nucleotide or declared symbolic alleles, declared INFO and FORMAT
// IDs, AD summing to DP, VAF within [0, 1], integral sample values from 1
// upwards, and every declared INFO ID used at least once.
func Validate(src RecordSource) (*Report, error) {
	h := src.Header()
	info := h.Declared("INFO")
	format := h.Declared("FORMAT")
	alts := h.Declared("ALT")
	used := make(map[string]bool)

	report := &Report{}
	for {
		rec, err := src.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		report.Records++
		line := src.LineNumber()
		add := func(field, msg string, args ...any) {
			report.Problems = append(report.Problems, Problem{Line: line, Field: field, Message: fmt.Sprintf(msg, args...)})
		}

		if !validAllele(rec.Ref) || strings.HasPrefix(rec.Ref, "<") {
			add("REF", "invalid allele %q", rec.Ref)
		}
		switch {
		case rec.IsSymbolic():
			if !alts[strings.Trim(rec.Alt, "<>")] {
				add("ALT", "symbolic allele %s is not declared", rec.Alt)
			}
		case !validAllele(rec.Alt):
			add("ALT", "invalid allele %q", rec.Alt)
		}

		for _, f := range rec.Info {
			used[f.Key] = true
			if !info[f.Key] {
				add("INFO", "%s is not declared in the header", f.Key)
			}
			if CleanString(f.Value) != f.Value {
				add("INFO", "%s value contains characters that must be cleaned", f.Key)
			}
		}

		for _, key := range rec.Format {
			if !format[key] {
				add("FORMAT", "%s is not declared in the header", key)
			}
		}
		for i, v := range rec.Sample {
			if CleanSampleValue(v) != v && i < len(rec.Format) && rec.Format[i] != "AD" {
				add(rec.Format[i], "value %s keeps a decimal part", v)
			}
		}

		dp, hasDP := rec.SampleValue("DP")
		ad, hasAD := rec.SampleValue("AD")
		if hasDP && hasAD {
			if msg := checkDepths(dp, ad); msg != "" {
				add("AD", "%s", msg)
			}
		}
		if vaf, ok := rec.SampleValue("VAF"); ok && vaf != Missing {
			f, err := strconv.ParseFloat(vaf, 64)
			if err != nil || f < 0 || f > 1 {
				add("VAF", "%s is not a fraction in [0, 1]", vaf)
			}
		}
	}

	if report.Records > 0 {
		var unused []string
		for id := range info {
			if !used[id] {
				unused = append(unused, id)
			}
		}
		sort.Strings(unused)
		for _, id := range unused {
			report.Problems = append(report.Problems, Problem{Field: "INFO", Message: fmt.Sprintf("%s is declared but never used", id)})
		}
	}
	return report, nil
}

func validAllele(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return len(s) > 2
	}
	return strings.Trim(s, "ACGTN") == ""
}

func checkDepths(dp, ad string) string {
	total, err := strconv.ParseInt(dp, 10, 64)
	if err != nil {
		return ""
	}
	ref, alt, ok := strings.Cut(ad, ",")
	if !ok {
		return ""
	}
	r, err1 := strconv.ParseInt(ref, 10, 64)
	a, err2 := strconv.ParseInt(alt, 10, 64)
	if err1 != nil || err2 != nil {
		return ""
	}
	if r+a != total {
		return fmt.Sprintf("%s does not sum to DP %s", ad, dp)
	}
	return ""
}
