package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/applicability-scraper/internal/ozon"
)

// FileStore keeps listings in a single JSON array on disk.
type FileStore struct {
	mu       sync.RWMutex
	listings []ozon.Listing
	filename string
}

func NewFileStore(filename string) (*FileStore, error) {
	if filename == "" {
		return nil, fmt.Errorf("storage file name is required")
	}

	fs := &FileStore{filename: filename}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) List(ctx context.Context, search string) ([]ozon.Listing, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return filter(fs.listings, search), nil
}

func (fs *FileStore) Append(ctx context.Context, listings []ozon.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := append([]ozon.Listing(nil), fs.listings...)
	index := make(map[string]int, len(next))
	for i, l := range next {
		index[l.OfferID] = i
	}
	for _, l := range listings {
		if i, ok := index[l.OfferID]; ok {
			next[i] = l
			continue
		}
		index[l.OfferID] = len(next)
		next = append(next, l)
	}

	if err := fs.save(next); err != nil {
		return err
	}
	fs.listings = next
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, offerID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := make([]ozon.Listing, 0, len(fs.listings))
	for _, l := range fs.listings {
		if l.OfferID != offerID {
			next = append(next, l)
		}
	}
	if len(next) == len(fs.listings) {
		return nil
	}

	if err := fs.save(next); err != nil {
		return err
	}
	fs.listings = next
	return nil
}

func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) save(listings []ozon.Listing) error {
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	if dir := filepath.Dir(fs.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage dir: %w", err)
		}
	}

	// Write to temp file first for atomicity
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write listings: %w", err)
	}

	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if errors.Is(err, os.ErrNotExist) {
		fs.listings = []ozon.Listing{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read listings: %w", err)
	}

	if len(data) == 0 {
		fs.listings = []ozon.Listing{}
		return nil
	}
	if err := json.Unmarshal(data, &fs.listings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", fs.filename, err)
	}
	return nil
}
