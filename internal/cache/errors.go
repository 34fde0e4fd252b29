package cache

import (
	"errors"
	"fmt"
)

// Reasons carried by CorruptCacheError.
const (
	ReasonBadMagic         = "bad-magic"
	ReasonVersionMismatch  = "version-mismatch"
	ReasonTruncated        = "truncated"
	ReasonUnknownTag       = "unknown-tag"
	ReasonChecksumMismatch = "checksum-mismatch"
)

// CorruptCacheError reports a cache blob that cannot be trusted. The live index is never touched
// when it is returned.
type CorruptCacheError struct {
	Reason string
	Detail string
}

func (e *CorruptCacheError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("corrupt index cache: %s", e.Reason)
	}
	return fmt.Sprintf("corrupt index cache: %s: %s", e.Reason, e.Detail)
}

// IsCorrupt reports whether err wraps a *CorruptCacheError.
func IsCorrupt(err error) bool {
	var target *CorruptCacheError
	return errors.As(err, &target)
}

func corrupt(reason, format string, args ...any) *CorruptCacheError {
	return &CorruptCacheError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
