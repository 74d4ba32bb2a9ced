// Package enums holds the closed string types stored in the database and
// exchanged over the API.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed list of values of one enum type.
type set[T ~string] []T

func (s set[T]) has(v T) bool { return slices.Contains(s, v) }

// parse matches raw after trimming and folding it with fold.
func (s set[T]) parse(kind, raw string, fold func(string) string) (T, error) {
	if v := T(fold(strings.TrimSpace(raw))); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
