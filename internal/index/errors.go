package index

import (
	"errors"
	"fmt"
)

// NonExistingNamespaceError reports that a query named a namespace the index has never seen.
// Callers usually treat it as "cannot answer" rather than as a failure.
type NonExistingNamespaceError struct {
	Name string
}

func (e *NonExistingNamespaceError) Error() string {
	return fmt.Sprintf("namespace %q is not indexed", e.Name)
}

// IsNonExistingNamespace reports whether err wraps a *NonExistingNamespaceError.
func IsNonExistingNamespace(err error) bool {
	var target *NonExistingNamespaceError
	return errors.As(err, &target)
}
