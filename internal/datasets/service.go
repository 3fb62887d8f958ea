// Package datasets handles dataset ingestion and location: uploaded CSV
// bytes go to the object store under a content-derived key, the record
// goes to the database, and jobs later resolve the record back to a
// time-limited retrieval URL.
package datasets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/salescope/salescope/internal/cache"
	"github.com/salescope/salescope/internal/objectstore"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
)

var ErrEmptyDataset = errors.New("dataset file is empty")

// urlCacheTTL bounds how long a presigned URL is served from cache. Must stay
// well under the presign expiry so a cached URL is never handed out dead.
const urlCacheTTL = 5 * time.Minute

// Service ingests and locates datasets.
type Service struct {
	store   store.Store
	objects objectstore.ObjectStore
	cache   cache.Cache
}

// NewService creates a dataset service.
func NewService(st store.Store, objects objectstore.ObjectStore, ca cache.Cache) *Service {
	return &Service{store: st, objects: objects, cache: ca}
}

// Upload stores the CSV bytes and creates the dataset record. The storage
// key is derived from the content hash, so re-uploading identical bytes
// reuses the same object and hands back the existing record.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, name string, data []byte) (*models.Dataset, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("datasets/%s.csv", hex.EncodeToString(sum[:]))

	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return nil, fmt.Errorf("storing dataset: %w", err)
	}

	ds := &models.Dataset{
		ID:         uuid.New(),
		Name:       name,
		StorageKey: key,
		OwnerID:    ownerID,
		RowCount:   CountRows(data),
		SizeBytes:  int64(len(data)),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateDataset(ctx, ds); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Same bytes were uploaded before; the object write above was a
			// no-op overwrite, so the existing record stays authoritative.
			existing, lookupErr := s.store.GetDatasetByStorageKey(ctx, key)
			if lookupErr != nil {
				return nil, fmt.Errorf("resolving duplicate dataset: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("creating dataset record: %w", err)
	}
	return ds, nil
}

// Get returns the dataset record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.store.GetDataset(ctx, id)
}

// List returns a page of dataset records plus the total count.
func (s *Service) List(ctx context.Context, filter store.DatasetFilter) ([]*models.Dataset, int, error) {
	return s.store.ListDatasets(ctx, filter)
}

// Locate resolves a dataset to a time-limited retrieval URL. Presigning is
// pure HMAC work but every job and every dataset read asks for it, so recent
// URLs are served from cache. Cache errors fall through to a fresh presign.
func (s *Service) Locate(ctx context.Context, ds *models.Dataset) (string, error) {
	cacheKey := cache.DatasetURLKey(ds.ID)
	if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
		return string(cached), nil
	}

	url, err := s.objects.PresignedGetURL(ctx, ds.StorageKey)
	if err != nil {
		return "", fmt.Errorf("locating dataset %s: %w", ds.ID, err)
	}

	_ = s.cache.Set(ctx, cacheKey, []byte(url), urlCacheTTL)
	return url, nil
}

// CountRows counts data rows in a newline-delimited CSV: line count minus
// one header line. No quoting or escaping awareness.
func CountRows(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	lines := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		lines++
	}
	rows := lines - 1
	if rows < 0 {
		return 0
	}
	return rows
}
