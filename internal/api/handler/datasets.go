package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/salescope/salescope/internal/api/middleware"
	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/internal/datasets"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
)

const maxUploadBytes = 50 << 20 // 50 MiB

// DatasetService defines the dataset operations the handlers depend on.
type DatasetService interface {
	Upload(ctx context.Context, ownerID uuid.UUID, name string, data []byte) (*models.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context, filter store.DatasetFilter) ([]*models.Dataset, int, error)
	Locate(ctx context.Context, ds *models.Dataset) (string, error)
}

// NewUploadDatasetHandler returns an http.HandlerFunc for POST /api/v1/datasets.
// Expects a multipart form with a "file" part containing CSV data.
func NewUploadDatasetHandler(svc DatasetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authentication required", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file provided", nil)
			return
		}
		defer file.Close()

		if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Only CSV files are accepted", nil)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read file", nil)
			return
		}

		ds, err := svc.Upload(r.Context(), user.ID, header.Filename, data)
		if err != nil {
			if errors.Is(err, datasets.ErrEmptyDataset) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Dataset file is empty", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store dataset", nil)
			return
		}

		response.Created(w, ds)
	}
}

// NewListDatasetsHandler returns an http.HandlerFunc for GET /api/v1/datasets.
func NewListDatasetsHandler(svc DatasetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePagination(r)

		list, total, err := svc.List(r.Context(), store.DatasetFilter{
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list datasets", nil)
			return
		}
		if list == nil {
			list = []*models.Dataset{}
		}

		response.Collection(w, list, response.NewPagination(total, page, pageSize))
	}
}

// NewGetDatasetHandler returns an http.HandlerFunc for GET /api/v1/datasets/{id}.
// The response carries a fresh time-limited download URL.
func NewGetDatasetHandler(svc DatasetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "datasetID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Dataset not found", nil)
			return
		}

		ds, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Dataset not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load dataset", nil)
			return
		}

		url, err := svc.Locate(r.Context(), ds)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to locate dataset", nil)
			return
		}

		response.JSON(w, datasetDetail{Dataset: ds, DownloadURL: url})
	}
}

type datasetDetail struct {
	*models.Dataset
	DownloadURL string `json:"download_url"`
}
