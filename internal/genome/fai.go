package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// faiRecord is one line of a samtools FASTA index:
//
//	NAME  LENGTH  OFFSET  LINEBASES  LINEWIDTH
type faiRecord struct {
	length    int64
	offset    int64
	lineBases int64
	lineWidth int64
}

// readFAI parses a .fai file. A missing file is reported with an error
// satisfying os.IsNotExist.
func readFAI(path string) (map[string]faiRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	index := make(map[string]faiRecord)
	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, fmt.Errorf("fai %s line %d: expected at least 5 columns, found %d", path, lineNumber, len(fields))
		}

		var nums [4]int64
		for i := range nums {
			n, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("fai %s line %d: invalid number %q", path, lineNumber, fields[i+1])
			}
			nums[i] = n
		}
		if nums[2] <= 0 || nums[3] < nums[2] {
			return nil, fmt.Errorf("fai %s line %d: invalid line geometry", path, lineNumber)
		}
		index[fields[0]] = faiRecord{
			length:    nums[0],
			offset:    nums[1],
			lineBases: nums[2],
			lineWidth: nums[3],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan fai: %w", err)
	}
	return index, nil
}

// baseAt reads the base at 0-based offset i of the record.
func (r faiRecord) baseAt(f io.ReaderAt, i int64) (byte, error) {
	off := r.offset + (i/r.lineBases)*r.lineWidth + i%r.lineBases
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, off); err != nil {
		return 0, err
	}
	return buf[0], nil
}
