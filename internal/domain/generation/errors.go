package generation

import (
	"errors"
	"fmt"

	"github.com/genrelay/server/internal/model"
)

var (
	// ErrEmptyMessage is returned when the request has no usable text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrPromptTooShort is returned when an image prompt is below the minimum length.
	ErrPromptTooShort = errors.New("image prompt too short")

	// ErrNoProviderAvailable is returned when a chain has no registered provider.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrEmptyPayload is returned when a provider succeeds with vacuous content.
	ErrEmptyPayload = errors.New("provider returned empty payload")

	// ErrProviderPanic is returned when a provider panics during Invoke.
	ErrProviderPanic = errors.New("provider panicked")

	// ErrChainExhausted is returned when every provider in a chain failed.
	ErrChainExhausted = errors.New("all providers failed")
)

// ExhaustedError carries the ordered per-provider failures of a chain.
type ExhaustedError struct {
	Kind     model.Mode
	Attempts []model.Attempt
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", ErrChainExhausted, e.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", ErrChainExhausted, e.Kind, e.Err)
}

// Is matches ErrChainExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrChainExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
