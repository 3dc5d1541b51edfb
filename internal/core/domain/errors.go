package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input/output paths or disallowed file types.
	// Never retried, never billed.
	ErrValidation = errors.New("validation failed")
	// ErrSelection marks the absence of any suitable provider. Terminal.
	ErrSelection = errors.New("no suitable provider")
	// ErrProvider marks a single failed provider attempt; drives fallback.
	ErrProvider = errors.New("provider failure")
	// ErrCredential marks a vault operation failure, surfaced to its caller.
	ErrCredential = errors.New("credential operation failed")
	// ErrQualityRejected marks a provider-reported success below the
	// acceptance threshold; treated as a failure for fallback purposes.
	ErrQualityRejected = errors.New("result below quality threshold")
	// ErrTemporary marks transient infrastructure failures eligible for retry.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
