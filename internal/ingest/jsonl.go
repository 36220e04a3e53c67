package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// JSONLImporter handles .jsonl/.ndjson chat exports: one JSON object per
// line with a "text" field and an optional "ts" timestamp. Lines that are
// not valid JSON or lack a text field are counted as malformed and skipped.
type JSONLImporter struct{}

type jsonlRecord struct {
	Text      string `json:"text"`
	Message   string `json:"message"`
	Content   string `json:"content"`
	TS        string `json:"ts"`
	Timestamp string `json:"timestamp"`
}

// CanHandle returns true for line-delimited JSON extensions.
func (j *JSONLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jsonl" || ext == ".ndjson"
}

// Import parses one document per line.
func (j *JSONLImporter) Import(ctx context.Context, path string) ([]Document, []RecordError, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var docs []Document
	var recErrs []RecordError

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			recErrs = append(recErrs, RecordError{
				File:    absPath,
				Record:  lineNum,
				Message: "invalid JSON: " + err.Error(),
			})
			continue
		}

		text := strings.TrimSpace(firstNonEmpty(rec.Text, rec.Message, rec.Content))
		if text == "" {
			recErrs = append(recErrs, RecordError{
				File:    absPath,
				Record:  lineNum,
				Message: "no text field",
			})
			continue
		}

		doc := Document{
			ID:         DocumentID(absPath, text),
			RawText:    text,
			SourceKind: KindChat,
			SourcePath: absPath,
			SourceLine: lineNum,
		}

		if raw := firstNonEmpty(rec.TS, rec.Timestamp); raw != "" {
			if ts, ok := parseTimestamp(raw); ok {
				doc.Timestamp = ts
			}
		}

		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return docs, recErrs, err
	}
	return docs, recErrs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
