package ingest

import (
	"bufio"
	"context"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
)

// MboxImporter handles .mbox/.mbx email dumps. One message becomes one
// document: headers are parsed for Date (the rest are dropped), and the
// body is kept verbatim so the content filter can judge quoted chains.
type MboxImporter struct{}

// CanHandle returns true for mbox file extensions.
func (m *MboxImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".mbox" || ext == ".mbx"
}

// Import splits the mbox on "From " separator lines and parses each
// message. Messages without a parsable body are counted as malformed.
func (m *MboxImporter) Import(ctx context.Context, path string) ([]Document, []RecordError, error) {
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

	var current []string
	msgStart := 0
	msgNum := 0
	lineNum := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		msgNum++
		doc, ok := parseMboxMessage(strings.Join(current, "\n"), absPath, msgStart)
		if !ok {
			recErrs = append(recErrs, RecordError{
				File:    absPath,
				Record:  msgNum,
				Message: "message has no body",
			})
		} else {
			docs = append(docs, doc)
		}
		current = current[:0]
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") {
			flush()
			msgStart = lineNum
			continue
		}
		// mbox ">From " escaping
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		current = append(current, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return docs, recErrs, err
	}
	return docs, recErrs, nil
}

// parseMboxMessage splits one message into headers and body. Only the
// Date header survives (as the document timestamp); everything else is
// metadata about other people and stays out of the pipeline.
func parseMboxMessage(msg, absPath string, startLine int) (Document, bool) {
	headerPart := msg
	body := ""
	if idx := strings.Index(msg, "\n\n"); idx >= 0 {
		headerPart = msg[:idx]
		body = msg[idx+2:]
	} else {
		// Headerless fragment: treat the whole thing as body.
		headerPart = ""
		body = msg
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return Document{}, false
	}

	doc := Document{
		ID:         DocumentID(absPath, body),
		RawText:    body,
		SourceKind: KindEmail,
		SourcePath: absPath,
		SourceLine: startLine,
	}

	if headerPart != "" {
		if date := headerValue(headerPart, "Date"); date != "" {
			if ts, err := mail.ParseDate(date); err == nil {
				doc.Timestamp = ts.UTC()
			}
		}
	}

	return doc, true
}

func headerValue(headers, name string) string {
	prefix := strings.ToLower(name) + ":"
	for _, line := range strings.Split(headers, "\n") {
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
