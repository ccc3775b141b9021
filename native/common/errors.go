package common

import "errors"

// ErrInvariant marks fatal invariant violations: failures that indicate an
// implementation bug rather than a user-correctable precondition. Callers
// distinguish the two classes with errors.Is(err, ErrInvariant); both classes
// leave state untouched.
var ErrInvariant = errors.New("invariant violation")
