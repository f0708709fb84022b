package subway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
)

// ParseRoute splits a dotted route such as "a.b.c" into its hops.
func ParseRoute(route string) []string {
	if route == "" {
		return nil
	}
	return strings.Split(route, ".")
}

// ValidateID reports whether `id` can be used as a node id: non-empty
// UTF-8 without dots.
func ValidateID(id string) bool {
	return id != "" && !strings.Contains(id, ".") && utf8.ValidString(id)
}

// validatePath checks the path invariants: non-empty, no empty hop and
// every node at most once.
func validatePath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	seen := mapset.NewThreadUnsafeSetWithSize[string](len(path))
	for i, hop := range path {
		if hop == "" {
			return fmt.Errorf("%w: empty hop at index %d", ErrInvalidPath, i)
		}
		if !utf8.ValidString(hop) {
			return fmt.Errorf("%w: hop at index %d is not valid UTF-8", ErrInvalidPath, i)
		}
		if !seen.Add(hop) {
			return fmt.Errorf("%w: %q appears more than once", ErrInvalidPath, hop)
		}
	}
	return nil
}

// originPath makes sure `self` is the first hop of a caller-supplied route.
func originPath(self string, route []string) []string {
	if len(route) > 0 && route[0] == self {
		return route
	}
	path := make([]string, 0, len(route)+1)
	path = append(path, self)
	return append(path, route...)
}
