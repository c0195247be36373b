// Package coords resolves external variant identifiers to genomic
// coordinates. Lookup tables are bulk-loaded into DuckDB.
package coords

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// Coordinate is the VCF locus of one external variant.
type Coordinate struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
}

// Store provides variant-ID lookups backed by DuckDB.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	lookupPS *sql.Stmt

	// memCache is set by Preload and makes Lookup skip the database.
	memCache map[string]Coordinate
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS coordinates (
		variant_id VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR
	)`); err != nil {
		return err
	}
	s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_coordinates_id ON coordinates (variant_id)`)
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.lookupPS != nil {
		s.lookupPS.Close()
		s.lookupPS = nil
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Load bulk-loads a coordinate file. The file has one header line followed
// by tab-separated records:
//
//	variantID  chrom  pos  ref  alt
//
// Chromosome names are given a "chr" prefix when they lack one. Loading
// replaces any previously loaded data.
func (s *Store) Load(tsvPath string) error {
	if _, err := os.Stat(tsvPath); err != nil {
		return fmt.Errorf("coordinate file: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM coordinates`); err != nil {
		return fmt.Errorf("clear coordinates: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO coordinates
		SELECT column0,
			CASE WHEN starts_with(column1, 'chr') THEN column1 ELSE 'chr' || column1 END,
			CAST(column2 AS BIGINT), upper(column3), upper(column4)
		FROM read_csv('%s', delim='\t', header=false, skip=1,
			columns={
				'column0': 'VARCHAR',
				'column1': 'VARCHAR',
				'column2': 'VARCHAR',
				'column3': 'VARCHAR',
				'column4': 'VARCHAR'
			})`, strings.ReplaceAll(tsvPath, "'", "''"))

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("loading coordinates from %s: %w", tsvPath, err)
	}
	s.memCache = nil
	return nil
}

// Count returns the number of loaded coordinates.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM coordinates").Scan(&count); err != nil {
		return 0, fmt.Errorf("count coordinates: %w", err)
	}
	return count, nil
}

// Preload copies all coordinates into memory. When an identifier occurs more
// than once the last line of the file wins, as in Lookup.
func (s *Store) Preload() error {
	rows, err := s.db.Query("SELECT variant_id, chrom, pos, ref, alt FROM coordinates ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("query coordinates for preload: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]Coordinate)
	for rows.Next() {
		var id string
		var c Coordinate
		if err := rows.Scan(&id, &c.Chrom, &c.Pos, &c.Ref, &c.Alt); err != nil {
			return fmt.Errorf("scan preload row: %w", err)
		}
		cache[id] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload rows: %w", err)
	}

	s.memCache = cache
	return nil
}

// Lookup returns the coordinate of a variant identifier, the last one loaded
// if the file repeats it. It is safe for concurrent use once loading has
// finished.
func (s *Store) Lookup(id string) (Coordinate, error) {
	if s.memCache != nil {
		c, ok := s.memCache[id]
		if !ok {
			return Coordinate{}, &MissingCoordinateError{ID: id}
		}
		return c, nil
	}

	ps, err := s.statement()
	if err != nil {
		return Coordinate{}, err
	}
	var c Coordinate
	err = ps.QueryRow(id).Scan(&c.Chrom, &c.Pos, &c.Ref, &c.Alt)
	if errors.Is(err, sql.ErrNoRows) {
		return Coordinate{}, &MissingCoordinateError{ID: id}
	}
	if err != nil {
		return Coordinate{}, fmt.Errorf("lookup coordinate %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) statement() (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupPS == nil {
		ps, err := s.db.Prepare(
			"SELECT chrom, pos, ref, alt FROM coordinates WHERE variant_id = ? ORDER BY rowid DESC LIMIT 1",
		)
		if err != nil {
			return nil, fmt.Errorf("prepare coordinate lookup: %w", err)
		}
		s.lookupPS = ps
	}
	return s.lookupPS, nil
}

// MissingCoordinateError is returned when a variant identifier has no entry
// in the coordinate table.
type MissingCoordinateError struct {
	ID string
}

func (e *MissingCoordinateError) Error() string {
	return fmt.Sprintf("variant %q not found in coordinate table", e.ID)
}
