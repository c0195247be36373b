package convert

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/inodb/variantconvert/internal/mapping"
)

// SampleName derives the sample identifier from an input path: the family
// prefix is stripped from the base name, then everything from the first
// configured suffix that the name ends with is dropped.
//
//	fam12_PatientA.final.tsv -> PatientA
func SampleName(path string, general mapping.General) (string, error) {
	prefix := general.FamilyPrefix
	if prefix == "" {
		prefix = mapping.DefaultFamilyPrefix
	}
	re, err := regexp.Compile(prefix)
	if err != nil {
		return "", fmt.Errorf("family prefix: %w", err)
	}

	name := re.ReplaceAllString(filepath.Base(path), "")
	for _, end := range general.FilenameEnds {
		if end == "" || !strings.HasSuffix(name, end) {
			continue
		}
		if sample := name[:strings.Index(name, end)]; sample != "" {
			return sample, nil
		}
	}
	return "", &UnresolvableSampleNameError{Path: path, Suffixes: general.FilenameEnds}
}
