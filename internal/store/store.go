// Package store caches completed analysis reports in SQLite. Reports
// are keyed by a fingerprint of the analysis inputs, so repeating the
// same competitor set within the TTL returns the cached report instead
// of re-running research and LLM calls.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rivalscope/internal/core"
)

// Store represents the SQLite-based report cache
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rivalscope.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	reportsTable := `
	CREATE TABLE IF NOT EXISTS reports (
		fingerprint TEXT PRIMARY KEY,
		report_id TEXT,
		competitors TEXT,
		focus_area TEXT,
		device_category TEXT,
		report_json TEXT,
		generated_at DATETIME
	);`

	if _, err := s.db.Exec(reportsTable); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

// Fingerprint derives the cache key for an analysis request. Competitor
// order does not matter; names are normalized before hashing so
// "Medtronic, Abbott" and "abbott, medtronic" hit the same entry.
func Fingerprint(competitors []string, focusArea string) string {
	normalized := make([]string, 0, len(competitors))
	for _, competitor := range competitors {
		name := strings.ToLower(strings.TrimSpace(competitor))
		if name != "" {
			normalized = append(normalized, name)
		}
	}
	sort.Strings(normalized)

	h := sha256.New()
	for _, name := range normalized {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	h.Write([]byte(strings.ToLower(strings.TrimSpace(focusArea))))

	return fmt.Sprintf("%x", h.Sum(nil))
}

// SaveReport caches a report under its input fingerprint, replacing
// any previous entry for the same inputs.
func (s *Store) SaveReport(report *core.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	fingerprint := Fingerprint(report.Metadata.Competitors, report.Metadata.FocusArea)

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports
		(fingerprint, report_id, competitors, focus_area, device_category, report_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fingerprint,
		report.ID,
		strings.Join(report.Metadata.Competitors, ", "),
		report.Metadata.FocusArea,
		report.Metadata.DeviceCategory,
		string(reportJSON),
		report.Metadata.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetCachedReport returns the cached report for the given inputs if one
// exists and is younger than ttl. A cache miss returns (nil, nil).
func (s *Store) GetCachedReport(competitors []string, focusArea string, ttl time.Duration) (*core.Report, error) {
	fingerprint := Fingerprint(competitors, focusArea)

	var reportJSON string
	var generatedAt time.Time
	err := s.db.QueryRow(`
		SELECT report_json, generated_at FROM reports WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&reportJSON, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report cache: %w", err)
	}

	if time.Since(generatedAt) > ttl {
		return nil, nil
	}

	var report core.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached report: %w", err)
	}

	report.Metadata.FromCache = true
	return &report, nil
}

// ListReports returns cached report metadata, newest first.
func (s *Store) ListReports() ([]core.ReportMetadata, error) {
	rows, err := s.db.Query(`
		SELECT report_json FROM reports ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var entries []core.ReportMetadata
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		var report core.Report
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		entries = append(entries, report.Metadata)
	}
	return entries, rows.Err()
}

// ClearExpired removes cache entries older than ttl and returns how
// many were deleted.
func (s *Store) ClearExpired(ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)
	result, err := s.db.Exec(`DELETE FROM reports WHERE generated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reports: %w", err)
	}
	return result.RowsAffected()
}

// ClearAll removes every cached report.
func (s *Store) ClearAll() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM reports`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear report cache: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
