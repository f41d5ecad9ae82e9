// Package storage defines the folder-and-file view of cloud storage the
// committer works against.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// MaxRenameAttempts bounds how many "name N" candidates CreateFolder tries
// under the rename policy.
const MaxRenameAttempts = 100

var (
	// ErrNotFound is returned when a folder or file does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict is returned when a folder already exists and the policy is ConflictFail.
	ErrConflict = errors.New("storage: name conflict")
)

// ConflictPolicy decides what CreateFolder does when the name is taken.
type ConflictPolicy string

const (
	ConflictFail    ConflictPolicy = "fail"
	ConflictRename  ConflictPolicy = "rename"
	ConflictReplace ConflictPolicy = "replace"
)

// Item is one child of a folder.
type Item struct {
	Name     string
	IsFolder bool
	Size     int64
}

// Client is a hierarchical file store. Folder paths are slash separated and
// relative to the store's root; "" is the root itself.
type Client interface {
	// ListChildren returns the direct children of folder.
	ListChildren(ctx context.Context, folder string) ([]Item, error)

	// CreateFolder creates name under parent and returns the name actually
	// created, which differs from name only under ConflictRename.
	CreateFolder(ctx context.Context, parent, name string, policy ConflictPolicy) (string, error)

	// Upload writes data to folder/name, replacing any existing content.
	Upload(ctx context.Context, folder, name string, data []byte, contentType string) error

	// Download returns the content of folder/name.
	Download(ctx context.Context, folder, name string) ([]byte, error)
}

// Join joins path elements into a root-relative folder path.
func Join(elem ...string) string {
	p := path.Join(elem...)
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// RenameCandidate returns the n-th alternative for a taken name: "name 1",
// "name 2", ... n == 0 returns name unchanged.
func RenameCandidate(name string, n int) string {
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s %d", name, n)
}

// ValidName reports whether name can be used as a single path element.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}

// Find returns the child called name, if present.
func Find(items []Item, name string) (Item, bool) {
	for _, it := range items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}
