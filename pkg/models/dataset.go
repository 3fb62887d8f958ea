package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is an uploaded CSV sales file. The bytes live in object storage
// under StorageKey; jobs reference datasets and never mutate them.
type Dataset struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	StorageKey string    `db:"storage_key" json:"storage_key"`
	OwnerID    uuid.UUID `db:"owner_id"    json:"owner_id"`
	RowCount   int       `db:"row_count"   json:"row_count"`
	SizeBytes  int64     `db:"size_bytes"  json:"size_bytes"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
