package vcf

// RecordSource is implemented by readers that yield records with a header.
type RecordSource interface {
	// Header returns the parsed header.
	Header() *Header

	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)

	// LineNumber returns the current line number being processed.
	LineNumber() int
}
