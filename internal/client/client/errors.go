package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

// RateLimitError is returned for 429 answers. It matches common.ErrRateLimited.
type RateLimitError struct {
	Reset      time.Time
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", common.ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return common.ErrRateLimited
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, common.ErrRateLimited)
}
