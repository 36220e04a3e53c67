// Package ingest is the source loading layer for Voiceprint.
// It reads a writing corpus from heterogeneous file formats (plain text,
// CSV exports, mbox email dumps, line-delimited chat logs), normalizes
// each input record into a discrete Document, and reports per-record
// parse failures without aborting the load.
package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

// SourceKind categorizes where a document came from. It drives the
// content filter's length-exception table, so new kinds must be added
// there as well.
type SourceKind string

const (
	KindEmail       SourceKind = "email"
	KindChat        SourceKind = "chat"
	KindLetter      SourceKind = "letter"
	KindCodeComment SourceKind = "code_comment"
	KindOther       SourceKind = "other"
)

// ParseSourceKind validates a user-supplied kind string.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case KindEmail, KindChat, KindLetter, KindCodeComment, KindOther:
		return SourceKind(s), nil
	}
	return "", fmt.Errorf("unknown source kind %q (expected email, chat, letter, code_comment, other)", s)
}

// Document is one unit of source text. RawText is held only for the
// duration of a run; it is never written to durable storage.
type Document struct {
	ID         string // sha256(source path + content), stable across runs
	RawText    string // original text, transient
	SourceKind SourceKind
	SourcePath string    // absolute path to the source file
	SourceLine int       // starting line or record number (1-indexed)
	Timestamp  time.Time // zero when the source carries no date
	Flags      []string  // quality flags attached by the content filter
}

// DocumentID computes the stable identifier for a document: SHA-256 over
// source path + NUL separator + content. Including the path means the
// same text appearing in two files yields two distinct documents.
func DocumentID(sourcePath, content string) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Importer handles a specific source file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file into documents. Malformed individual records
	// are skipped and reported in the returned RecordError slice; only
	// whole-file failures return a non-nil error.
	Import(ctx context.Context, path string) ([]Document, []RecordError, error)
}

// RecordError records a non-fatal per-record parse failure.
type RecordError struct {
	File    string
	Record  int // line or record number, 1-indexed
	Message string
}

// LoadResult summarizes a load operation.
type LoadResult struct {
	FilesScanned int
	FilesLoaded  int
	FilesSkipped int // unsupported extension or binary content inside a directory
	Documents    []Document
	Malformed    int
	Errors       []RecordError
}

// Add merges another LoadResult into this one.
func (r *LoadResult) Add(other *LoadResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesLoaded += other.FilesLoaded
	r.FilesSkipped += other.FilesSkipped
	r.Documents = append(r.Documents, other.Documents...)
	r.Malformed += other.Malformed
	r.Errors = append(r.Errors, other.Errors...)
}

// LoadOptions configures a load operation.
type LoadOptions struct {
	Format      string     // explicit format hint: "text", "csv", "mbox", "jsonl"; empty = detect by extension
	Kind        SourceKind // override for every produced document; empty = per-importer default
	Recursive   bool
	MaxFileSize int64 // bytes, default 10MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize bounds single source files at 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	// ErrSourceUnreadable is returned when the input path is missing or
	// cannot be opened. Fatal for the whole run.
	ErrSourceUnreadable = errors.New("source path unreadable")

	// ErrUnsupportedFormat is returned when an explicitly named file or
	// format hint matches no importer. Fatal for the whole run.
	ErrUnsupportedFormat = errors.New("unsupported source format")
)
