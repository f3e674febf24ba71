package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFile        = errors.New("missing file")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrStorage            = errors.New("storage failure")
	ErrPartialConsistency = errors.New("partial consistency")
	ErrAccessDenied       = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrDeletePartial      = errors.New("delete partial failure")
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
