package quota

import (
	"errors"
	"fmt"

	"github.com/genrelay/server/internal/model"
)

var (
	// ErrQuotaDenied is returned when a subject has reached its daily limit.
	ErrQuotaDenied = errors.New("daily quota exhausted")

	// ErrContention is returned when the usage record kept changing under us.
	ErrContention = errors.New("usage record contention")

	// ErrInvalidSubject is returned when the subject has no id.
	ErrInvalidSubject = errors.New("invalid subject")
)

// DeniedError carries the counts behind a quota denial.
type DeniedError struct {
	Tier  model.PlanTier
	Count int
	Limit int
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %d/%d for tier %s", ErrQuotaDenied, e.Count, e.Limit, e.Tier)
}

// Is matches ErrQuotaDenied.
func (e *DeniedError) Is(target error) bool {
	return target == ErrQuotaDenied
}
