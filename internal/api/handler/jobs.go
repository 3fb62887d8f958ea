package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/salescope/salescope/internal/api/middleware"
	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/internal/jobs"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
)

// JobService defines the orchestrator operations the handlers depend on.
type JobService interface {
	Submit(ctx context.Context, submitter *models.User, params jobs.SubmitParams) (*models.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	Metrics(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// Replies 202 as soon as the pending record exists; the forecast itself
// runs detached from this request.
func NewSubmitJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authentication required", nil)
			return
		}

		var req struct {
			DatasetID   string `json:"datasetId"`
			JobKind     string `json:"jobKind"`
			Horizon     int    `json:"horizon"`
			Granularity string `json:"granularity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		datasetID, err := uuid.Parse(req.DatasetID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_PARAMS", "datasetId must be a valid id", nil)
			return
		}

		job, err := svc.Submit(r.Context(), user, jobs.SubmitParams{
			DatasetID:   datasetID,
			Kind:        req.JobKind,
			Horizon:     req.Horizon,
			Granularity: req.Granularity,
		})
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrInvalidParams):
				response.Error(w, http.StatusBadRequest, "INVALID_PARAMS", err.Error(), nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to submit job", nil)
			}
			return
		}

		response.Accepted(w, submitJobResponse{
			JobID:       job.ID,
			Status:      job.Status,
			JobKind:     job.Kind,
			Horizon:     job.Horizon,
			Granularity: job.Granularity,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// Read-only: returns the record verbatim, including null result/metrics/error
// fields while the job is non-terminal.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		job, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePagination(r)

		list, total, err := svc.List(r.Context(), store.JobFilter{
			Status:   r.URL.Query().Get("status"),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}
		if list == nil {
			list = []*models.Job{}
		}

		response.Collection(w, list, response.NewPagination(total, page, pageSize))
	}
}

// NewJobMetricsHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/metrics.
// Metrics exist only for completed jobs; any other status is a 400 echoing
// the current status.
func NewJobMetricsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		job, err := svc.Metrics(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrNotCompleted):
				response.Error(w, http.StatusBadRequest, "JOB_NOT_COMPLETED",
					"Metrics are available only for completed jobs",
					map[string]string{"status": job.Status})
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to load job metrics", nil)
			}
			return
		}

		response.JSON(w, jobMetricsResponse{
			Metrics: job.Metrics,
			JobKind: job.Kind,
			Horizon: job.Horizon,
		})
	}
}

// parsePagination reads page/pageSize query params with defaults.
func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 && v <= 100 {
		pageSize = v
	}
	return page, pageSize
}

type submitJobResponse struct {
	JobID       uuid.UUID `json:"jobId"`
	Status      string    `json:"status"`
	JobKind     string    `json:"jobKind"`
	Horizon     int       `json:"horizon"`
	Granularity string    `json:"granularity"`
}

type jobMetricsResponse struct {
	Metrics *models.Metrics `json:"metrics"`
	JobKind string          `json:"jobKind"`
	Horizon int             `json:"horizon"`
}
