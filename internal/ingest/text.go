package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// PlainTextImporter handles .txt, .log, .md, and extensionless files.
//
// By default each blank-line-separated paragraph becomes one document.
// With WholeFile set (used when the caller declares the source a letter),
// the entire file is a single document, since letters are one coherent
// piece of writing rather than a record stream.
type PlainTextImporter struct {
	WholeFile bool
}

// CanHandle returns true for plain text extensions. Also acts as fallback
// for extensionless files.
func (t *PlainTextImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".log" || ext == ".md" || ext == ""
}

// Import parses a plain text file into documents.
func (t *PlainTextImporter) Import(ctx context.Context, path string) ([]Document, []RecordError, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil, nil
	}

	if t.WholeFile {
		text := strings.TrimSpace(content)
		return []Document{{
			ID:         DocumentID(absPath, text),
			RawText:    text,
			SourceKind: KindOther,
			SourcePath: absPath,
			SourceLine: 1,
		}}, nil, nil
	}

	return splitTextIntoParagraphs(content, absPath), nil, nil
}

// splitTextIntoParagraphs splits text on double newlines and tracks line numbers.
func splitTextIntoParagraphs(content, absPath string) []Document {
	var docs []Document

	paragraphs := strings.Split(content, "\n\n")
	lineNum := 1

	for _, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text == "" {
			lineNum += strings.Count(para, "\n") + 2
			continue
		}

		docs = append(docs, Document{
			ID:         DocumentID(absPath, text),
			RawText:    text,
			SourceKind: KindOther,
			SourcePath: absPath,
			SourceLine: lineNum,
		})
		lineNum += strings.Count(para, "\n") + 2
	}

	return docs
}
