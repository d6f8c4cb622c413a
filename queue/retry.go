package queue

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/moyoez/localstore-go/transfer"
)

// DefaultBackoff is exponential with jitter: 200ms, 400ms, 800ms ... capped at 64 * 200ms.
func DefaultBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 7 {
		attempt = 7
	}
	base := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
	jitter := time.Duration(rand.Intn(200)) * time.Millisecond
	return base + jitter
}

// retryable reports whether another attempt could succeed. Rejections in the 4xx range are
// final except 429.
func retryable(err error) bool {
	var rejected *transfer.ServerRejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusCode >= http.StatusInternalServerError ||
			rejected.StatusCode == http.StatusTooManyRequests
	}
	return true
}
