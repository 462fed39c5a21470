package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSchema      = errors.New("invalid schema")
	ErrUnsupportedLabel   = errors.New("unsupported label")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrLLMUnavailable     = errors.New("llm unavailable")
	ErrCacheUnavailable   = errors.New("cache unavailable")
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
