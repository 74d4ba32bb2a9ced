package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// SizeList stores selectable product sizes as a comma separated text column.
type SizeList []string

func (l *SizeList) Scan(src any) error {
	if src == nil {
		*l = SizeList{}
		return nil
	}

	switch v := src.(type) {
	case string:
		*l = ParseSizeList(v)
		return nil
	case []byte:
		*l = ParseSizeList(string(v))
		return nil
	default:
		return fmt.Errorf("SizeList: unsupported Scan type %T", src)
	}
}

func (l SizeList) Value() (driver.Value, error) {
	return strings.Join(l.normalized(), ","), nil
}

// Contains reports whether size is one of the selectable sizes.
func (l SizeList) Contains(size string) bool {
	size = strings.TrimSpace(size)
	if size == "" {
		return false
	}
	for _, candidate := range l.normalized() {
		if strings.EqualFold(candidate, size) {
			return true
		}
	}
	return false
}

// Canonical returns the stored spelling for size, or "" when absent.
func (l SizeList) Canonical(size string) string {
	size = strings.TrimSpace(size)
	for _, candidate := range l.normalized() {
		if strings.EqualFold(candidate, size) {
			return candidate
		}
	}
	return ""
}

// ParseSizeList splits a comma separated list, dropping blanks.
func ParseSizeList(raw string) SizeList {
	out := SizeList{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (l SizeList) normalized() []string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
