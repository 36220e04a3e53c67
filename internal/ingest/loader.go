package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader walks a file or directory and dispatches each file to the first
// importer that can handle it. Document order is deterministic: files are
// visited in sorted path order and records keep their in-file order.
type Loader struct {
	importers []Importer
}

// NewLoader creates a loader with the default importer set. Order matters:
// plain text is last because it accepts extensionless files as a fallback.
func NewLoader() *Loader {
	return &Loader{
		importers: []Importer{
			&CSVImporter{},
			&MboxImporter{},
			&JSONLImporter{},
			&PlainTextImporter{},
		},
	}
}

// Load reads every supported file under path. A missing or unreadable
// path is fatal (ErrSourceUnreadable); an explicitly named file with no
// matching importer is fatal (ErrUnsupportedFormat); unsupported files
// found during a directory walk are skipped and counted.
func (l *Loader) Load(ctx context.Context, path string, opts LoadOptions) (*LoadResult, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	if !info.IsDir() {
		result := &LoadResult{}
		if err := l.loadFile(ctx, path, info.Size(), opts, result, true); err != nil {
			return nil, err
		}
		return result, nil
	}

	files, err := collectFiles(path, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	result := &LoadResult{}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), file.path)
		}
		if err := l.loadFile(ctx, file.path, file.size, opts, result, false); err != nil {
			return result, err
		}
	}

	return result, nil
}

type walkedFile struct {
	path string
	size int64
}

// collectFiles gathers regular files in sorted path order. Hidden files
// and directories are skipped.
func collectFiles(root string, recursive bool) ([]walkedFile, error) {
	var files []walkedFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (!recursive || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, walkedFile{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// loadFile imports a single file into result. explicit marks a file the
// user named directly, which makes unsupported formats, import errors,
// and oversized files fatal instead of skipped.
func (l *Loader) loadFile(ctx context.Context, path string, size int64, opts LoadOptions, result *LoadResult, explicit bool) error {
	result.FilesScanned++

	if size > opts.MaxFileSize {
		if explicit {
			return fmt.Errorf("%s exceeds size limit (%d > %d bytes)", path, size, opts.MaxFileSize)
		}
		result.FilesSkipped++
		result.Errors = append(result.Errors, RecordError{
			File:    path,
			Message: fmt.Sprintf("file exceeds size limit (%d > %d bytes)", size, opts.MaxFileSize),
		})
		return nil
	}

	imp, err := l.pickImporter(path, opts)
	if err != nil {
		if explicit {
			return err
		}
		result.FilesSkipped++
		return nil
	}

	if skip, err := isBinaryFile(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	} else if skip {
		result.FilesSkipped++
		return nil
	}

	docs, recErrs, err := imp.Import(ctx, path)
	if err != nil {
		if explicit {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		result.FilesSkipped++
		result.Errors = append(result.Errors, RecordError{File: path, Message: err.Error()})
		return nil
	}

	if opts.Kind != "" {
		for i := range docs {
			docs[i].SourceKind = opts.Kind
		}
	}

	result.FilesLoaded++
	result.Documents = append(result.Documents, docs...)
	result.Malformed += len(recErrs)
	result.Errors = append(result.Errors, recErrs...)
	return nil
}

// pickImporter resolves the importer for a file, honoring an explicit
// format hint over extension detection.
func (l *Loader) pickImporter(path string, opts LoadOptions) (Importer, error) {
	if opts.Format != "" {
		switch strings.ToLower(opts.Format) {
		case "text", "txt":
			return &PlainTextImporter{WholeFile: opts.Kind == KindLetter}, nil
		case "csv", "tsv":
			return &CSVImporter{}, nil
		case "mbox":
			return &MboxImporter{}, nil
		case "jsonl", "ndjson":
			return &JSONLImporter{}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
		}
	}

	for _, imp := range l.importers {
		if imp.CanHandle(path) {
			// Letters are one coherent document per file, not a record stream.
			if _, ok := imp.(*PlainTextImporter); ok && opts.Kind == KindLetter {
				return &PlainTextImporter{WholeFile: true}, nil
			}
			return imp, nil
		}
	}
	return nil, fmt.Errorf("%w: extension %q (%s)", ErrUnsupportedFormat, filepath.Ext(path), path)
}

// isBinaryFile sniffs the first 512 bytes for NUL, which no supported
// text format contains.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

// FormatLoadResult renders a human-readable load summary.
func FormatLoadResult(r *LoadResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d file(s): %d loaded, %d skipped\n", r.FilesScanned, r.FilesLoaded, r.FilesSkipped)
	fmt.Fprintf(&b, "Documents: %d (%d malformed record(s) skipped)\n", len(r.Documents), r.Malformed)
	for _, e := range r.Errors {
		if e.Record > 0 {
			fmt.Fprintf(&b, "  %s:%d: %s\n", e.File, e.Record, e.Message)
		} else {
			fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
		}
	}
	return b.String()
}
