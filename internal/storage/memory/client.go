// Package memory is an in-process storage.Client for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/invoice-ledger/internal/storage"
)

// Client keeps folders and files in maps keyed by root-relative path.
type Client struct {
	mu      sync.Mutex
	folders map[string]bool
	files   map[string][]byte
	uploads int

	// FailUpload, when set, is consulted before every upload.
	FailUpload func(folder, name string) error
}

// NewClient returns an empty store containing only the root folder.
func NewClient() *Client {
	return &Client{
		folders: map[string]bool{"": true},
		files:   make(map[string][]byte),
	}
}

// ListChildren lists the direct children of folder in name order.
func (c *Client) ListChildren(ctx context.Context, folder string) ([]storage.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folder = storage.Join(folder)
	if !c.folders[folder] {
		return nil, fmt.Errorf("ListChildren: %q: %w", folder, storage.ErrNotFound)
	}

	var items []storage.Item
	for p := range c.folders {
		if name, ok := childName(folder, p); ok {
			items = append(items, storage.Item{Name: name, IsFolder: true})
		}
	}
	for p, data := range c.files {
		if name, ok := childName(folder, p); ok {
			items = append(items, storage.Item{Name: name, Size: int64(len(data))})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// CreateFolder creates parent/name according to policy.
func (c *Client) CreateFolder(ctx context.Context, parent, name string, policy storage.ConflictPolicy) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !storage.ValidName(name) {
		return "", fmt.Errorf("CreateFolder: invalid folder name %q", name)
	}
	parent = storage.Join(parent)
	if !c.folders[parent] {
		return "", fmt.Errorf("CreateFolder: parent %q: %w", parent, storage.ErrNotFound)
	}

	taken := func(n string) bool {
		p := storage.Join(parent, n)
		_, isFile := c.files[p]
		return c.folders[p] || isFile
	}

	switch policy {
	case storage.ConflictReplace:
		c.folders[storage.Join(parent, name)] = true
		return name, nil
	case storage.ConflictFail, "":
		if taken(name) {
			return "", fmt.Errorf("CreateFolder: %q: %w", storage.Join(parent, name), storage.ErrConflict)
		}
		c.folders[storage.Join(parent, name)] = true
		return name, nil
	case storage.ConflictRename:
		for n := 0; n < storage.MaxRenameAttempts; n++ {
			candidate := storage.RenameCandidate(name, n)
			if !taken(candidate) {
				c.folders[storage.Join(parent, candidate)] = true
				return candidate, nil
			}
		}
		return "", fmt.Errorf("CreateFolder: no free name for %q: %w", name, storage.ErrConflict)
	}

	return "", fmt.Errorf("CreateFolder: unknown conflict policy %q", policy)
}

// Upload stores a copy of data at folder/name.
func (c *Client) Upload(ctx context.Context, folder, name string, data []byte, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailUpload != nil {
		if err := c.FailUpload(folder, name); err != nil {
			return err
		}
	}
	if !storage.ValidName(name) {
		return fmt.Errorf("Upload: invalid file name %q", name)
	}
	folder = storage.Join(folder)
	if !c.folders[folder] {
		return fmt.Errorf("Upload: folder %q: %w", folder, storage.ErrNotFound)
	}

	c.files[storage.Join(folder, name)] = append([]byte(nil), data...)
	c.uploads++
	return nil
}

// Download returns a copy of folder/name.
func (c *Client) Download(ctx context.Context, folder, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.files[storage.Join(folder, name)]
	if !ok {
		return nil, fmt.Errorf("Download: %q: %w", storage.Join(folder, name), storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Files returns the paths of every stored file, sorted.
func (c *Client) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.files))
	for p := range c.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// File returns the content at path and whether it exists.
func (c *Client) File(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.files[storage.Join(path)]
	return data, ok
}

// Uploads counts successful Upload calls.
func (c *Client) Uploads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads
}

func childName(folder, p string) (string, bool) {
	if p == folder {
		return "", false
	}
	prefix := ""
	if folder != "" {
		prefix = folder + "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
