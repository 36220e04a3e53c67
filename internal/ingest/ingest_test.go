package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// ==================== Plain Text Importer ====================

func TestPlainTextImport_Paragraphs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "First paragraph here.\n\nSecond paragraph.\nStill second.\n\n\nThird.")

	imp := &PlainTextImporter{}
	if !imp.CanHandle(path) {
		t.Fatal("CanHandle should accept .txt")
	}

	docs, recErrs, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(recErrs) != 0 {
		t.Errorf("expected no record errors, got %v", recErrs)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(docs))
	}
	if docs[1].RawText != "Second paragraph.\nStill second." {
		t.Errorf("unexpected second paragraph: %q", docs[1].RawText)
	}
	if docs[0].SourceLine != 1 {
		t.Errorf("first paragraph should start at line 1, got %d", docs[0].SourceLine)
	}
	for _, d := range docs {
		if d.ID == "" {
			t.Error("document ID should not be empty")
		}
		if !filepath.IsAbs(d.SourcePath) {
			t.Errorf("SourcePath should be absolute: %s", d.SourcePath)
		}
	}
}

func TestPlainTextImport_WholeFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "letter.txt", "Dear friend,\n\nIt has been too long.\n\nYours,\nM")

	imp := &PlainTextImporter{WholeFile: true}
	docs, _, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("whole-file mode should yield 1 document, got %d", len(docs))
	}
	if !strings.Contains(docs[0].RawText, "too long") {
		t.Errorf("body lost content: %q", docs[0].RawText)
	}
}

func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("/src/a.txt", "hello")
	b := DocumentID("/src/a.txt", "hello")
	c := DocumentID("/src/b.txt", "hello")
	if a != b {
		t.Error("same path+content should hash identically")
	}
	if a == c {
		t.Error("different paths should hash differently")
	}
}

// ==================== CSV Importer ====================

func TestCSVImport_TextColumnDetection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv",
		"id,body,date\n"+
			"1,Hello there friend,2023-04-01\n"+
			"2,,2023-04-02\n"+
			"3,Second real message,2023-04-03\n")

	imp := &CSVImporter{}
	docs, recErrs, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if len(recErrs) != 1 {
		t.Fatalf("expected 1 malformed record (empty body), got %d", len(recErrs))
	}
	if recErrs[0].Record != 3 {
		t.Errorf("malformed record should be row 3, got %d", recErrs[0].Record)
	}
	if docs[0].RawText != "Hello there friend" {
		t.Errorf("unexpected text: %q", docs[0].RawText)
	}
	if docs[0].Timestamp.IsZero() {
		t.Error("date column should populate Timestamp")
	}
}

func TestCSVImport_ExplicitColumn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv",
		"note,extra\nthe real text,x\n")

	imp := &CSVImporter{TextColumn: "note"}
	docs, _, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 1 || docs[0].RawText != "the real text" {
		t.Fatalf("explicit column not honored: %+v", docs)
	}

	imp = &CSVImporter{TextColumn: "missing"}
	if _, _, err := imp.Import(ctx, path); err == nil {
		t.Error("missing explicit column should fail the file")
	}
}

func TestCSVImport_LongestColumnFallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv",
		"a,b\nx,this column is clearly the prose one\ny,and keeps being much longer\n")

	imp := &CSVImporter{}
	docs, _, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if !strings.Contains(docs[0].RawText, "prose") {
		t.Errorf("fallback picked wrong column: %q", docs[0].RawText)
	}
}

// ==================== Mbox Importer ====================

const sampleMbox = `From alice@example.com Mon Apr  3 10:00:00 2023
From: alice@example.com
Subject: lunch
Date: Mon, 03 Apr 2023 10:00:00 -0400

Want to grab lunch tomorrow? I was thinking the usual place.

From alice@example.com Tue Apr  4 09:00:00 2023
From: alice@example.com
Subject: re: lunch

>From my side it worked out fine.
Thanks again for yesterday.

From alice@example.com Tue Apr  4 11:00:00 2023
Subject: empty one

`

func TestMboxImport_SplitsMessages(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "sent.mbox", sampleMbox)

	imp := &MboxImporter{}
	if !imp.CanHandle(path) {
		t.Fatal("CanHandle should accept .mbox")
	}

	docs, recErrs, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if len(recErrs) != 1 {
		t.Errorf("bodyless message should be a malformed record, got %d", len(recErrs))
	}
	if docs[0].SourceKind != KindEmail {
		t.Errorf("mbox documents should default to email kind, got %s", docs[0].SourceKind)
	}
	if docs[0].Timestamp.IsZero() {
		t.Error("Date header should populate Timestamp")
	}
	if strings.Contains(docs[0].RawText, "Subject:") {
		t.Errorf("headers should be stripped from body: %q", docs[0].RawText)
	}
	// the ">From " escape must be unescaped
	if !strings.HasPrefix(docs[1].RawText, "From my side") {
		t.Errorf("mbox From-escaping not reversed: %q", docs[1].RawText)
	}
}

// ==================== JSONL Importer ====================

func TestJSONLImport_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "chat.jsonl",
		`{"text":"hey are you around","ts":"2023-04-01T10:00:00Z"}`+"\n"+
			"not json at all\n"+
			`{"other":"no text field"}`+"\n"+
			`{"message":"using message key works too"}`+"\n")

	imp := &JSONLImporter{}
	docs, recErrs, err := imp.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if len(recErrs) != 2 {
		t.Fatalf("expected 2 malformed records, got %d: %v", len(recErrs), recErrs)
	}
	if docs[0].SourceKind != KindChat {
		t.Errorf("jsonl documents should default to chat kind, got %s", docs[0].SourceKind)
	}
	if docs[0].Timestamp.IsZero() {
		t.Error("ts field should populate Timestamp")
	}
}

// ==================== Loader ====================

func TestLoader_DirectoryDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "From file b.")
	writeFile(t, dir, "a.txt", "From file a.")
	writeFile(t, dir, "c.txt", "From file c.")
	writeFile(t, dir, "skip.png", string([]byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}))

	loader := NewLoader()
	first, err := loader.Load(ctx, dir, LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := loader.Load(ctx, dir, LoadOptions{})
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if len(first.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(first.Documents))
	}
	if first.FilesSkipped != 1 {
		t.Errorf("unsupported file in directory should be skipped, got %d skips", first.FilesSkipped)
	}
	for i := range first.Documents {
		if first.Documents[i].ID != second.Documents[i].ID {
			t.Fatalf("document order not deterministic at index %d", i)
		}
	}
	if !strings.Contains(first.Documents[0].RawText, "file a") {
		t.Errorf("documents not in sorted path order: %q", first.Documents[0].RawText)
	}
}

func TestLoader_ExplicitUnsupportedFileFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.png", "not really a png")

	loader := NewLoader()
	_, err := loader.Load(ctx, path, LoadOptions{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), ".png") {
		t.Errorf("error should name the offending extension: %v", err)
	}
}

func TestLoader_ExplicitOversizedFileFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "big.txt", "these words exceed a tiny size limit")

	loader := NewLoader()
	_, err := loader.Load(ctx, path, LoadOptions{MaxFileSize: 10})
	if err == nil {
		t.Fatal("expected a fatal error for an explicitly named oversized file")
	}
	if !strings.Contains(err.Error(), "size limit") {
		t.Errorf("error should name the size limit: %v", err)
	}

	// The same file inside a directory is skipped, not fatal.
	result, err := loader.Load(ctx, dir, LoadOptions{MaxFileSize: 10})
	if err != nil {
		t.Fatalf("directory walk should skip oversized files: %v", err)
	}
	if result.FilesSkipped != 1 || len(result.Documents) != 0 {
		t.Errorf("expected 1 skipped file and no documents, got %d skipped, %d docs",
			result.FilesSkipped, len(result.Documents))
	}
}

func TestLoader_MissingPathFatal(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/corpus", LoadOptions{})
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestLoader_KindOverride(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "old-letter.txt", "My dearest,\n\nThe winters here are long.")

	loader := NewLoader()
	result, err := loader.Load(ctx, dir, LoadOptions{Kind: KindLetter})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("letter kind should load whole files as one document, got %d", len(result.Documents))
	}
	if result.Documents[0].SourceKind != KindLetter {
		t.Errorf("kind override not applied: %s", result.Documents[0].SourceKind)
	}
}

func TestLoader_FormatHint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// csv content in a .dat file, selectable only via the hint
	path := writeFile(t, dir, "export.dat", "text\nsome message content\n")

	loader := NewLoader()
	result, err := loader.Load(ctx, path, LoadOptions{Format: "csv"})
	if err != nil {
		t.Fatalf("Load with format hint failed: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(result.Documents))
	}

	if _, err := loader.Load(ctx, path, LoadOptions{Format: "parquet"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format hint should be fatal, got %v", err)
	}
}
