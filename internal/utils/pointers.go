package utils

import "strings"

// StringPtrOrNil trims s and returns nil when nothing is left.
func StringPtrOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
