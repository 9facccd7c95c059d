// Package models defines the domain types for mksearch.
package models

// DefaultInclude is the glob used when no include pattern is given.
const DefaultInclude = "**/*"

// KeywordSpec is the set of keywords a file must contain, in original casing.
type KeywordSpec struct {
	Keywords      []string `json:"keywords"`
	CaseSensitive bool     `json:"caseSensitive"`
	WholeWord     bool     `json:"wholeWord"`
}

// SearchOptions is a validated search request.
type SearchOptions struct {
	KeywordSpec
	IncludePattern string `json:"includePattern"`
	// ExcludePattern is empty when nothing is excluded.
	ExcludePattern string `json:"excludePattern,omitempty"`
	// MaxResults stops the run once this many files qualified (0 = unlimited).
	MaxResults int `json:"maxResults,omitempty"`
}

// FileRef identifies one file inside the workspace.
type FileRef struct {
	Path    string `json:"path"`    // absolute
	RelPath string `json:"relPath"` // slash-separated, relative to the workspace root
}

// Candidate is a file scheduled for scanning.
type Candidate struct {
	FileRef
	Size int64 `json:"size"`
}

// MatchPosition is one occurrence of a keyword.
type MatchPosition struct {
	Line      int    `json:"line"`      // 1-based
	Character int    `json:"character"` // 0-based, UTF-16 code units
	Text      string `json:"text"`
}

// MatchResult is a file that contains every keyword.
type MatchResult struct {
	FilePath         string                     `json:"filePath"`
	FileName         string                     `json:"fileName"`
	RelativePath     string                     `json:"relativePath"`
	MatchedKeywords  []string                   `json:"matchedKeywords"`
	KeywordPositions map[string][]MatchPosition `json:"keywordPositions"`
	TotalMatches     int                        `json:"totalMatches"`
}

// Outcome is how a search run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeErrored   Outcome = "errored"
)

// Summary describes a finished run.
type Summary struct {
	Outcome   Outcome `json:"outcome"`
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Found     int     `json:"found"`
	Err       string  `json:"error,omitempty"`
	// Cause is the error behind an errored outcome.
	Cause error `json:"-"`
}
