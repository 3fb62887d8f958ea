package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/salescope/salescope/internal/datasets"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDatasetService struct {
	uploadFn func(ctx context.Context, ownerID uuid.UUID, name string, data []byte) (*models.Dataset, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	listFn   func(ctx context.Context, filter store.DatasetFilter) ([]*models.Dataset, int, error)
	locateFn func(ctx context.Context, ds *models.Dataset) (string, error)
}

func (m *mockDatasetService) Upload(ctx context.Context, ownerID uuid.UUID, name string, data []byte) (*models.Dataset, error) {
	return m.uploadFn(ctx, ownerID, name, data)
}

func (m *mockDatasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return m.getFn(ctx, id)
}

func (m *mockDatasetService) List(ctx context.Context, filter store.DatasetFilter) ([]*models.Dataset, int, error) {
	return m.listFn(ctx, filter)
}

func (m *mockDatasetService) Locate(ctx context.Context, ds *models.Dataset) (string, error) {
	return m.locateFn(ctx, ds)
}

func datasetsRouter(svc DatasetService, user *models.User) http.Handler {
	r := chi.NewRouter()
	if user != nil {
		r.Use(withUser(user))
	}
	r.Post("/api/v1/datasets", NewUploadDatasetHandler(svc))
	r.Get("/api/v1/datasets", NewListDatasetsHandler(svc))
	r.Get("/api/v1/datasets/{datasetID}", NewGetDatasetHandler(svc))
	return r
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDataset_Created(t *testing.T) {
	analyst := &models.User{ID: uuid.New(), Role: models.RoleAnalyst}

	var gotOwner uuid.UUID
	var gotName string
	var gotData []byte
	svc := &mockDatasetService{
		uploadFn: func(_ context.Context, ownerID uuid.UUID, name string, data []byte) (*models.Dataset, error) {
			gotOwner, gotName, gotData = ownerID, name, data
			return &models.Dataset{
				ID:        uuid.New(),
				Name:      name,
				OwnerID:   ownerID,
				RowCount:  2,
				SizeBytes: int64(len(data)),
				CreatedAt: time.Now().UTC(),
			}, nil
		},
	}

	body, contentType := multipartUpload(t, "sales.csv", "date,units\n1,2\n3,4\n")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)

	datasetsRouter(svc, analyst).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, analyst.ID, gotOwner)
	assert.Equal(t, "sales.csv", gotName)
	assert.Equal(t, []byte("date,units\n1,2\n3,4\n"), gotData)

	var resp struct {
		Data models.Dataset `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.RowCount)
}

func TestUploadDataset_NoIdentity(t *testing.T) {
	svc := &mockDatasetService{}
	body, contentType := multipartUpload(t, "sales.csv", "date,units\n1,2\n")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)

	datasetsRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadDataset_MissingFile(t *testing.T) {
	svc := &mockDatasetService{}
	analyst := &models.User{ID: uuid.New(), Role: models.RoleAnalyst}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "sales"))
	require.NoError(t, w.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	datasetsRouter(svc, analyst).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDataset_NonCSV(t *testing.T) {
	svc := &mockDatasetService{}
	analyst := &models.User{ID: uuid.New(), Role: models.RoleAnalyst}

	body, contentType := multipartUpload(t, "report.xlsx", "binary-ish")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)

	datasetsRouter(svc, analyst).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "INVALID_REQUEST", code)
}

func TestUploadDataset_Empty(t *testing.T) {
	svc := &mockDatasetService{
		uploadFn: func(context.Context, uuid.UUID, string, []byte) (*models.Dataset, error) {
			return nil, datasets.ErrEmptyDataset
		},
	}
	analyst := &models.User{ID: uuid.New(), Role: models.RoleAnalyst}

	body, contentType := multipartUpload(t, "empty.csv", "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)

	datasetsRouter(svc, analyst).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDataset_IncludesDownloadURL(t *testing.T) {
	ds := &models.Dataset{
		ID:         uuid.New(),
		Name:       "sales.csv",
		StorageKey: "datasets/abc.csv",
		OwnerID:    uuid.New(),
		RowCount:   365,
	}
	svc := &mockDatasetService{
		getFn: func(_ context.Context, id uuid.UUID) (*models.Dataset, error) {
			require.Equal(t, ds.ID, id)
			return ds, nil
		},
		locateFn: func(_ context.Context, got *models.Dataset) (string, error) {
			require.Equal(t, ds.StorageKey, got.StorageKey)
			return "https://storage.example.com/datasets/abc.csv?sig=xyz", nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/datasets/"+ds.ID.String(), nil)

	datasetsRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID          uuid.UUID `json:"id"`
			DownloadURL string    `json:"download_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ds.ID, resp.Data.ID)
	assert.Contains(t, resp.Data.DownloadURL, "sig=")
}

func TestGetDataset_NotFound(t *testing.T) {
	svc := &mockDatasetService{
		getFn: func(context.Context, uuid.UUID) (*models.Dataset, error) {
			return nil, store.ErrNotFound
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/datasets/"+uuid.NewString(), nil)

	datasetsRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDatasets(t *testing.T) {
	svc := &mockDatasetService{
		listFn: func(_ context.Context, filter store.DatasetFilter) ([]*models.Dataset, int, error) {
			assert.Equal(t, 1, filter.Page)
			assert.Equal(t, 20, filter.PageSize)
			return []*models.Dataset{{ID: uuid.New(), Name: "sales.csv"}}, 1, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/datasets", nil)

	datasetsRouter(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}
