package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(userID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:%s", userID)
}

func DatasetURLKey(datasetID uuid.UUID) string {
	return fmt.Sprintf("dataset:url:%s", datasetID)
}
