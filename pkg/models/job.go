package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const (
	JobKindBaseline = "baseline"
	JobKindARIMA    = "arima"
	JobKindXGBoost  = "xgboost"
)

const (
	GranularityDaily   = "daily"
	GranularityWeekly  = "weekly"
	GranularityMonthly = "monthly"
)

// Horizon bounds for a forecast job, in periods of the chosen granularity.
const (
	MinHorizon = 1
	MaxHorizon = 365
)

// ValidJobKind reports whether kind names a supported forecast model.
func ValidJobKind(kind string) bool {
	switch kind {
	case JobKindBaseline, JobKindARIMA, JobKindXGBoost:
		return true
	}
	return false
}

// ValidGranularity reports whether g is a supported time granularity.
func ValidGranularity(g string) bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// Prediction is a single forecast point.
type Prediction struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Metrics are the accuracy metrics returned by the forecast service.
// Accuracy is a percentage in [0, 100].
type Metrics struct {
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	MAPE     float64 `json:"mape"`
	Accuracy float64 `json:"accuracy"`
}

// Job tracks an async forecast run. The API returns the job on POST /api/v1/jobs;
// the client polls GET /api/v1/jobs/{id} until status is completed or failed.
// Result and Metrics are set only on completed jobs, ErrorMessage only on
// failed ones; all three serialize as explicit nulls while unset.
type Job struct {
	ID           uuid.UUID    `db:"id"            json:"id"`
	DatasetID    uuid.UUID    `db:"dataset_id"    json:"dataset_id"`
	SubmitterID  uuid.UUID    `db:"submitter_id"  json:"submitter_id"`
	Kind         string       `db:"kind"          json:"job_kind"`
	Horizon      int          `db:"horizon"       json:"horizon"`
	Granularity  string       `db:"granularity"   json:"granularity"`
	Status       string       `db:"status"        json:"status"`
	Result       []Prediction `db:"result"        json:"result"`
	Metrics      *Metrics     `db:"metrics"       json:"metrics"`
	ErrorMessage *string      `db:"error_message" json:"error_message"`
	StartedAt    *time.Time   `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time   `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
