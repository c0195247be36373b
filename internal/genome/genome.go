// Package genome provides reference sequence lookups used to anchor indels.
package genome

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Genome answers single-base queries against a reference FASTA.
// A Genome is read-only once loaded and safe for concurrent use.
type Genome struct {
	path string

	// in-memory mode: contig -> sequence
	sequences map[string]string

	// indexed mode: contig -> .fai record, bases read from file on demand
	index map[string]faiRecord
	file  *os.File
}

// Load opens the FASTA at path. Uncompressed files with a samtools .fai index
// next to them are served from the index; everything else is read into memory.
func Load(path string) (*Genome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fasta file: %w", err)
	}

	gz, err := isGzip(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if !gz {
		if idx, err := readFAI(path + ".fai"); err == nil {
			return &Genome{path: path, index: idx, file: f}, nil
		} else if !os.IsNotExist(err) {
			f.Close()
			return nil, err
		}
	}
	defer f.Close()

	var reader io.Reader = f
	if gz {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	}

	g := &Genome{path: path, sequences: make(map[string]string)}
	if err := g.parseFASTA(reader); err != nil {
		return nil, err
	}
	return g, nil
}

// isGzip checks for the gzip magic number and rewinds the file.
func isGzip(f *os.File) (bool, error) {
	buf := make([]byte, 2)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read fasta header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("seek fasta file: %w", err)
	}
	return n == 2 && buf[0] == 0x1f && buf[1] == 0x8b, nil
}

// parseFASTA reads every record into memory. The contig name is the first
// word of the header line.
func (g *Genome) parseFASTA(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var currentName string
	var currentSeq strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ">") {
			if currentName != "" {
				g.sequences[currentName] = currentSeq.String()
			}
			currentName = contigName(line)
			currentSeq.Reset()
			continue
		}
		currentSeq.WriteString(strings.TrimSpace(line))
	}

	if currentName != "" {
		g.sequences[currentName] = currentSeq.String()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan fasta: %w", err)
	}
	return nil
}

func contigName(header string) string {
	header = strings.TrimPrefix(header, ">")
	if fields := strings.Fields(header); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Path returns the FASTA path the genome was loaded from.
func (g *Genome) Path() string {
	return g.path
}

// Len returns the length of a contig.
func (g *Genome) Len(contig string) (int64, error) {
	if g.index != nil {
		rec, ok := g.index[contig]
		if !ok {
			return 0, &UnknownContigError{Contig: contig}
		}
		return rec.length, nil
	}
	seq, ok := g.sequences[contig]
	if !ok {
		return 0, &UnknownContigError{Contig: contig}
	}
	return int64(len(seq)), nil
}

// Base returns the uppercase base at the 1-based position pos of contig.
func (g *Genome) Base(contig string, pos int64) (byte, error) {
	length, err := g.Len(contig)
	if err != nil {
		return 0, err
	}
	if pos < 1 || pos > length {
		return 0, &PositionOutOfRangeError{Contig: contig, Pos: pos, Length: length}
	}

	var b byte
	if g.index != nil {
		b, err = g.index[contig].baseAt(g.file, pos-1)
		if err != nil {
			return 0, fmt.Errorf("read %s:%d from %s: %w", contig, pos, g.path, err)
		}
	} else {
		b = g.sequences[contig][pos-1]
	}
	return toUpper(b), nil
}

// Contigs returns the number of contigs in the genome.
func (g *Genome) Contigs() int {
	if g.index != nil {
		return len(g.index)
	}
	return len(g.sequences)
}

// Close releases the underlying file in indexed mode.
func (g *Genome) Close() error {
	if g.file != nil {
		return g.file.Close()
	}
	return nil
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// UnknownContigError is returned when a contig is not present in the genome.
type UnknownContigError struct {
	Contig string
}

func (e *UnknownContigError) Error() string {
	return fmt.Sprintf("unknown contig %q in reference genome", e.Contig)
}

// PositionOutOfRangeError is returned for positions outside [1, length].
type PositionOutOfRangeError struct {
	Contig string
	Pos    int64
	Length int64
}

func (e *PositionOutOfRangeError) Error() string {
	return fmt.Sprintf("position %d out of range for contig %s (length %d)", e.Pos, e.Contig, e.Length)
}
