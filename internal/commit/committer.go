// Package commit persists an accepted invoice: the original file goes into the
// period folder of its invoice date and one row is appended to that folder's ledger.
package commit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/ledger"
	"github.com/dvloznov/invoice-ledger/internal/logger"
	"github.com/dvloznov/invoice-ledger/internal/storage"
)

const ledgerContentType = "text/csv"

// ErrLedgerFilename is returned when an attachment would be stored under the
// ledger's own name.
var ErrLedgerFilename = errors.New("filename is reserved for the ledger")

// Result describes where an invoice was committed.
type Result struct {
	Folder     string // path of the period folder, relative to the storage root
	FilePath   string
	LedgerPath string
}

// Committer writes invoices into a storage.Client.
//
// Ledger updates are download-append-upload. They are serialized per folder
// within one Committer; two processes committing into the same folder can
// still lose a row.
type Committer struct {
	store      storage.Client
	root       string
	ledgerName string
	now        func() time.Time
	locks      *keyedMutex
}

// Option configures a Committer.
type Option func(*Committer)

// WithRoot places period folders under root instead of the storage root.
func WithRoot(root string) Option {
	return func(c *Committer) { c.root = storage.Join(root) }
}

// WithLedgerFilename overrides ledger.DefaultFilename.
func WithLedgerFilename(name string) Option {
	return func(c *Committer) {
		if name != "" {
			c.ledgerName = name
		}
	}
}

// WithClock sets the source of ledger row timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

// NewCommitter creates a Committer on store.
func NewCommitter(store storage.Client, opts ...Option) *Committer {
	c := &Committer{
		store:      store,
		ledgerName: ledger.DefaultFilename,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LedgerFilename returns the name of the per-folder ledger file.
func (c *Committer) LedgerFilename() string {
	return c.ledgerName
}

// Root returns the folder that holds the period folders.
func (c *Committer) Root() string {
	return c.root
}

// Commit stores data as filename in the folder for fields.InvoiceDate and
// appends fields to that folder's ledger. There is no rollback: a ledger
// failure leaves the uploaded file in place. A filename equal to the ledger
// name, ignoring case, is rejected before anything is written. Every error is
// an invoice.ErrKindCommit error.
func (c *Committer) Commit(ctx context.Context, fields invoice.Fields, data []byte, filename, contentType string) (Result, error) {
	log := logger.FromContext(ctx)

	if strings.EqualFold(filename, c.ledgerName) {
		return Result{}, invoice.NewError(invoice.ErrKindCommit, "check filename",
			fmt.Errorf("%q: %w", filename, ErrLedgerFilename))
	}

	period, err := FolderFor(fields.InvoiceDate)
	if err != nil {
		return Result{}, invoice.NewError(invoice.ErrKindCommit, "resolve folder", err)
	}

	folder, err := c.resolveFolder(ctx, period)
	if err != nil {
		return Result{}, invoice.NewError(invoice.ErrKindCommit, "resolve folder", err)
	}

	res := Result{
		Folder:     folder,
		FilePath:   storage.Join(folder, filename),
		LedgerPath: storage.Join(folder, c.ledgerName),
	}

	if err := c.store.Upload(ctx, folder, filename, data, contentType); err != nil {
		return res, invoice.NewError(invoice.ErrKindCommit, "upload file", err)
	}
	log.Debug().Str("path", res.FilePath).Int("bytes", len(data)).Msg("Uploaded invoice file")

	if err := c.appendRow(ctx, folder, ledger.NewRow(fields, c.now())); err != nil {
		return res, invoice.NewError(invoice.ErrKindCommit, "append ledger row", err)
	}
	log.Debug().Str("ledger", res.LedgerPath).Msg("Appended ledger row")

	return res, nil
}

// resolveFolder returns the path of the period folder, creating it when it is
// missing.
func (c *Committer) resolveFolder(ctx context.Context, period string) (string, error) {
	unlock := c.locks.Lock("folder:" + period)
	defer unlock()

	children, err := c.store.ListChildren(ctx, c.root)
	if errors.Is(err, storage.ErrNotFound) && c.root != "" {
		if err := c.ensureRoot(ctx); err != nil {
			return "", err
		}
		children, err = nil, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolveFolder: list %q: %w", c.root, err)
	}

	if it, ok := storage.Find(children, period); ok && it.IsFolder {
		return storage.Join(c.root, period), nil
	}

	name, err := c.store.CreateFolder(ctx, c.root, period, storage.ConflictRename)
	if err != nil {
		return "", fmt.Errorf("resolveFolder: create %q: %w", period, err)
	}
	if name != period {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("wanted", period).
			Str("created", name).
			Msg("Period folder name was taken, storage renamed it")
	}

	return storage.Join(c.root, name), nil
}

// ensureRoot creates every segment of the configured root.
func (c *Committer) ensureRoot(ctx context.Context) error {
	parent := ""
	for _, part := range strings.Split(c.root, "/") {
		if _, err := c.store.CreateFolder(ctx, parent, part, storage.ConflictReplace); err != nil {
			return fmt.Errorf("ensureRoot: create %q: %w", storage.Join(parent, part), err)
		}
		parent = storage.Join(parent, part)
	}
	return nil
}

// appendRow adds row to the ledger in folder, creating the ledger when absent.
func (c *Committer) appendRow(ctx context.Context, folder string, row ledger.Row) error {
	unlock := c.locks.Lock("ledger:" + folder)
	defer unlock()

	children, err := c.store.ListChildren(ctx, folder)
	if err != nil {
		return fmt.Errorf("appendRow: list %q: %w", folder, err)
	}

	var existing []byte
	if _, ok := storage.Find(children, c.ledgerName); ok {
		existing, err = c.store.Download(ctx, folder, c.ledgerName)
		if err != nil {
			return fmt.Errorf("appendRow: download ledger: %w", err)
		}
	} else {
		if err := c.store.Upload(ctx, folder, c.ledgerName, ledger.HeaderContent(), ledgerContentType); err != nil {
			return fmt.Errorf("appendRow: create ledger: %w", err)
		}
		existing = ledger.HeaderContent()
	}

	updated, err := ledger.Append(existing, row)
	if err != nil {
		return fmt.Errorf("appendRow: %w", err)
	}

	if err := c.store.Upload(ctx, folder, c.ledgerName, updated, ledgerContentType); err != nil {
		return fmt.Errorf("appendRow: upload ledger: %w", err)
	}

	return nil
}

// ReadLedger returns the rows of the ledger in period folder "YYYY.MM".
func (c *Committer) ReadLedger(ctx context.Context, period string) ([]ledger.Row, error) {
	folder := storage.Join(c.root, period)

	data, err := c.store.Download(ctx, folder, c.ledgerName)
	if err != nil {
		return nil, fmt.Errorf("ReadLedger: %w", err)
	}

	rows, err := ledger.ReadRows(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ReadLedger: %w", err)
	}
	return rows, nil
}
