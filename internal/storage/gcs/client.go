// Package gcs implements storage.Client on a Google Cloud Storage bucket.
// Folders are zero-byte marker objects whose names end in "/".
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/invoice-ledger/internal/storage"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// Client stores folders and files as objects in one bucket.
type Client struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
}

// NewClient connects to bucketName using Application Default Credentials.
func NewClient(ctx context.Context, bucketName string) (*Client, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("NewClient: bucket name is required")
	}

	c, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}

	return &Client{client: c, bucket: c.Bucket(bucketName)}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// ListChildren lists objects and marker folders directly below folder.
func (c *Client) ListChildren(ctx context.Context, folder string) ([]storage.Item, error) {
	prefix := folderPrefix(folder)

	it := c.bucket.Objects(ctx, &gcstorage.Query{Prefix: prefix, Delimiter: "/"})

	var items []storage.Item
	found := prefix == ""
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListChildren: list %q: %w", prefix, err)
		}

		found = true
		if attrs.Prefix != "" {
			items = append(items, storage.Item{
				Name:     strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/"),
				IsFolder: true,
			})
			continue
		}
		if attrs.Name == prefix {
			// The folder's own marker.
			continue
		}
		items = append(items, storage.Item{
			Name: strings.TrimPrefix(attrs.Name, prefix),
			Size: attrs.Size,
		})
	}

	if !found {
		return nil, fmt.Errorf("ListChildren: %q: %w", folder, storage.ErrNotFound)
	}

	return items, nil
}

// CreateFolder writes a marker object for parent/name. Existence is decided
// by the marker alone, using a does-not-exist precondition.
func (c *Client) CreateFolder(ctx context.Context, parent, name string, policy storage.ConflictPolicy) (string, error) {
	if !storage.ValidName(name) {
		return "", fmt.Errorf("CreateFolder: invalid folder name %q", name)
	}

	switch policy {
	case storage.ConflictReplace:
		if err := c.writeObject(ctx, folderPrefix(storage.Join(parent, name)), nil, "", false); err != nil {
			return "", fmt.Errorf("CreateFolder: %w", err)
		}
		return name, nil

	case storage.ConflictFail, "":
		err := c.writeObject(ctx, folderPrefix(storage.Join(parent, name)), nil, "", true)
		if isPreconditionFailed(err) {
			return "", fmt.Errorf("CreateFolder: %q: %w", storage.Join(parent, name), storage.ErrConflict)
		}
		if err != nil {
			return "", fmt.Errorf("CreateFolder: %w", err)
		}
		return name, nil

	case storage.ConflictRename:
		for n := 0; n < storage.MaxRenameAttempts; n++ {
			candidate := storage.RenameCandidate(name, n)
			err := c.writeObject(ctx, folderPrefix(storage.Join(parent, candidate)), nil, "", true)
			if isPreconditionFailed(err) {
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

// Upload writes data to folder/name, overwriting any existing object.
func (c *Client) Upload(ctx context.Context, folder, name string, data []byte, contentType string) error {
	if !storage.ValidName(name) {
		return fmt.Errorf("Upload: invalid file name %q", name)
	}

	if err := c.writeObject(ctx, storage.Join(folder, name), data, contentType, false); err != nil {
		return fmt.Errorf("Upload: %w", err)
	}
	return nil
}

// Download reads folder/name.
func (c *Client) Download(ctx context.Context, folder, name string) ([]byte, error) {
	objectName := storage.Join(folder, name)

	r, err := c.bucket.Object(objectName).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Download: %q: %w", objectName, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Download: open object reader %q: %w", objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: read object %q: %w", objectName, err)
	}

	return data, nil
}

func (c *Client) writeObject(ctx context.Context, objectName string, data []byte, contentType string, mustNotExist bool) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := c.bucket.Object(objectName)
	if mustNotExist {
		obj = obj.If(gcstorage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", objectName, err)
	}

	// Close finalizes the upload and reports precondition failures.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q: %w", objectName, err)
	}

	return nil
}

// folderPrefix returns the object-name prefix (and marker name) of folder.
func folderPrefix(folder string) string {
	folder = storage.Join(folder)
	if folder == "" {
		return ""
	}
	return folder + "/"
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
