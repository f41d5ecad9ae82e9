// Package localfs implements storage.Client on a local directory tree.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/invoice-ledger/internal/storage"
)

// Client keeps folders and files under root.
type Client struct {
	root string
}

// NewClient creates root if needed and returns a Client rooted there.
func NewClient(root string) (*Client, error) {
	if root == "" {
		return nil, fmt.Errorf("NewClient: root directory is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("NewClient: resolve %q: %w", root, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewClient: create root %q: %w", abs, err)
	}

	return &Client{root: abs}, nil
}

// Root returns the absolute root directory.
func (c *Client) Root() string {
	return c.root
}

// ListChildren lists the entries of folder. Temporary upload files are hidden.
func (c *Client) ListChildren(ctx context.Context, folder string) ([]storage.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := c.resolve(folder)
	if err != nil {
		return nil, fmt.Errorf("ListChildren: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ListChildren: %q: %w", folder, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ListChildren: read %q: %w", dir, err)
	}

	items := make([]storage.Item, 0, len(entries))
	for _, e := range entries {
		if isTempFile(e.Name()) {
			continue
		}
		item := storage.Item{Name: e.Name(), IsFolder: e.IsDir()}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				item.Size = info.Size()
			}
		}
		items = append(items, item)
	}

	return items, nil
}

// CreateFolder makes parent/name. The parent must already exist.
func (c *Client) CreateFolder(ctx context.Context, parent, name string, policy storage.ConflictPolicy) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !storage.ValidName(name) {
		return "", fmt.Errorf("CreateFolder: invalid folder name %q", name)
	}

	parentDir, err := c.resolve(parent)
	if err != nil {
		return "", fmt.Errorf("CreateFolder: %w", err)
	}
	if _, err := os.Stat(parentDir); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("CreateFolder: parent %q: %w", parent, storage.ErrNotFound)
	}

	switch policy {
	case storage.ConflictReplace:
		err := os.Mkdir(filepath.Join(parentDir, name), 0o755)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("CreateFolder: %w", err)
		}
		return name, nil

	case storage.ConflictFail, "":
		err := os.Mkdir(filepath.Join(parentDir, name), 0o755)
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("CreateFolder: %q: %w", storage.Join(parent, name), storage.ErrConflict)
		}
		if err != nil {
			return "", fmt.Errorf("CreateFolder: %w", err)
		}
		return name, nil

	case storage.ConflictRename:
		for n := 0; n < storage.MaxRenameAttempts; n++ {
			candidate := storage.RenameCandidate(name, n)
			err := os.Mkdir(filepath.Join(parentDir, candidate), 0o755)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			if err != nil {
				return "", fmt.Errorf("CreateFolder: %w", err)
			}
			return candidate, nil
		}
		return "", fmt.Errorf("CreateFolder: no free name for %q after %d attempts: %w", name, storage.MaxRenameAttempts, storage.ErrConflict)
	}

	return "", fmt.Errorf("CreateFolder: unknown conflict policy %q", policy)
}

// Upload writes data through a temporary file and a rename, so readers never
// see a partially written file.
func (c *Client) Upload(ctx context.Context, folder, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !storage.ValidName(name) {
		return fmt.Errorf("Upload: invalid file name %q", name)
	}

	dir, err := c.resolve(folder)
	if err != nil {
		return fmt.Errorf("Upload: %w", err)
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Upload: folder %q: %w", folder, storage.ErrNotFound)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("Upload: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Upload: write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Upload: close %q: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("Upload: rename into place %q: %w", name, err)
	}

	return nil
}

// Download reads folder/name.
func (c *Client) Download(ctx context.Context, folder, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := c.resolve(folder)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Download: %q: %w", storage.Join(folder, name), storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}

	return data, nil
}

const tempPrefix = ".upload-"

func isTempFile(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// resolve maps a slash-separated folder path to a directory under root.
func (c *Client) resolve(folder string) (string, error) {
	rel := storage.Join(folder)
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("folder %q escapes the storage root", folder)
		}
	}
	return filepath.Join(c.root, filepath.FromSlash(rel)), nil
}
