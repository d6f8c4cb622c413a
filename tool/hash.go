package tool

import (
	"github.com/google/uuid"
)

// GenerateRandomUUID returns a v4 uuid. Used for upload item ids, which must stay
// unique even for same-named files enqueued in the same instant.
func GenerateRandomUUID() string {
	return uuid.New().String()
}
