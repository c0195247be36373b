package vcf

import (
	"bufio"
	"io"
)

// Writer writes a VCF header followed by data lines.
type Writer struct {
	w       *bufio.Writer
	records int
}

// NewWriter creates a new VCF writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes the meta lines and the #CHROM line.
func (vw *Writer) WriteHeader(h *Header) error {
	for _, line := range h.Lines() {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes one data line.
func (vw *Writer) Write(r *Record) error {
	if _, err := vw.w.WriteString(r.String()); err != nil {
		return err
	}
	vw.records++
	return vw.w.WriteByte('\n')
}

// Records returns the number of data lines written so far.
func (vw *Writer) Records() int {
	return vw.records
}

// Flush flushes buffered output to the underlying writer.
func (vw *Writer) Flush() error {
	return vw.w.Flush()
}
