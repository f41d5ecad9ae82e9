package main

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
)

// SourceCLI labels attachments read from the local filesystem.
const SourceCLI = "cli"

// collectFiles expands directories in paths into the regular files they
// contain, skipping hidden entries. Explicit file arguments are kept as is.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("collectFiles: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("collectFiles: walk %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// readAttachment loads path as an attachment named after its base name.
func readAttachment(path string) (invoice.RawAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return invoice.RawAttachment{}, fmt.Errorf("readAttachment: %w", err)
	}
	return invoice.RawAttachment{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: contentTypeFor(path, data),
		Source:      SourceCLI,
	}, nil
}

// contentTypeFor guesses from the extension first and sniffs the bytes when
// the extension is unknown.
func contentTypeFor(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return invoice.MediaType(ct)
	}
	return invoice.MediaType(http.DetectContentType(data))
}
