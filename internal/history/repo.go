package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akimixu/mksearch/internal/checksum"
	"github.com/akimixu/mksearch/internal/models"
)

// Entry is one recorded search.
type Entry struct {
	ID             int64          `json:"id"`
	Fingerprint    string         `json:"fingerprint"`
	Keywords       []string       `json:"keywords"`
	IncludePattern string         `json:"includePattern"`
	ExcludePattern string         `json:"excludePattern,omitempty"`
	CaseSensitive  bool           `json:"caseSensitive"`
	WholeWord      bool           `json:"wholeWord"`
	Outcome        models.Outcome `json:"outcome"`
	Total          int            `json:"total"`
	Processed      int            `json:"processed"`
	Found          int            `json:"found"`
	Error          string         `json:"error,omitempty"`
	Duration       time.Duration  `json:"durationNs"`
	StartedAt      time.Time      `json:"startedAt"`
}

// NewEntry builds an Entry from a finished run.
func NewEntry(opts models.SearchOptions, s models.Summary, started time.Time, took time.Duration) Entry {
	return Entry{
		Fingerprint:    Fingerprint(opts),
		Keywords:       opts.Keywords,
		IncludePattern: opts.IncludePattern,
		ExcludePattern: opts.ExcludePattern,
		CaseSensitive:  opts.CaseSensitive,
		WholeWord:      opts.WholeWord,
		Outcome:        s.Outcome,
		Total:          s.Total,
		Processed:      s.Processed,
		Found:          s.Found,
		Error:          s.Err,
		Duration:       took,
		StartedAt:      started.UTC(),
	}
}

// Fingerprint identifies a request independent of when it ran.
func Fingerprint(opts models.SearchOptions) string {
	include := opts.IncludePattern
	if include == "" {
		include = models.DefaultInclude
	}
	return checksum.Fields(
		strings.Join(opts.Keywords, "\x1e"),
		include,
		opts.ExcludePattern,
		strconv.FormatBool(opts.CaseSensitive),
		strconv.FormatBool(opts.WholeWord),
	)
}

// Record stores e and returns its id.
func (db *DB) Record(e Entry) (int64, error) {
	kwJSON, _ := json.Marshal(e.Keywords)
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO searches (fingerprint, keywords, include_glob, exclude_glob,
			case_sensitive, whole_word, outcome, total, processed, found, error,
			duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Fingerprint, string(kwJSON), e.IncludePattern, e.ExcludePattern,
		e.CaseSensitive, e.WholeWord, string(e.Outcome), e.Total, e.Processed, e.Found, e.Error,
		e.Duration.Milliseconds(), e.StartedAt)
	if err != nil {
		return 0, fmt.Errorf("history: record: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the latest run of each distinct request, newest first.
func (db *DB) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, fingerprint, keywords, include_glob, exclude_glob, case_sensitive,
			whole_word, outcome, total, processed, found, error, duration_ms, started_at
		FROM searches
		WHERE id IN (SELECT MAX(id) FROM searches GROUP BY fingerprint)
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			kwJSON  string
			outcome string
			ms      int64
		)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &kwJSON, &e.IncludePattern, &e.ExcludePattern,
			&e.CaseSensitive, &e.WholeWord, &outcome, &e.Total, &e.Processed, &e.Found, &e.Error,
			&ms, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		_ = json.Unmarshal([]byte(kwJSON), &e.Keywords)
		e.Outcome = models.Outcome(outcome)
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of recorded runs, repeats included.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM searches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Clear deletes every recorded run.
func (db *DB) Clear() error {
	if _, err := db.conn.Exec(`DELETE FROM searches`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}
