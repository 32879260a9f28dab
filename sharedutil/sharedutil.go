package sharedutil

import (
	"strings"

	"github.com/charlievieth/strcase"
	"github.com/deluan/sanitize"
)

func FilterSlice[T any](ss []T, test func(T) bool) []T {
	if ss == nil {
		return nil
	}
	result := make([]T, 0)
	for _, s := range ss {
		if test(s) {
			result = append(result, s)
		}
	}
	return result
}

func MapSlice[T any, U any](ts []T, f func(T) U) []U {
	if ts == nil {
		return nil
	}
	result := make([]U, len(ts))
	for i, t := range ts {
		result[i] = f(t)
	}
	return result
}

func FilterMapSlice[T any, U any](ts []T, f func(T) (U, bool)) []U {
	if ts == nil {
		return nil
	}
	result := make([]U, 0)
	for _, t := range ts {
		if u, ok := f(t); ok {
			result = append(result, u)
		}
	}
	return result
}

func ToSet[T comparable](ts []T) map[T]struct{} {
	set := make(map[T]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}

// NormalizeAppKey canonicalizes an app identifier (package name, desktop
// entry ID, or user-entered source name) for map lookups: trimmed,
// lowercased, accents stripped.
func NormalizeAppKey(s string) string {
	return strings.ToLower(sanitize.Accents(strings.TrimSpace(s)))
}

// AppKeysMatch reports whether two app identifiers refer to the same app,
// ignoring case and accents.
func AppKeysMatch(a, b string) bool {
	return strcase.Compare(sanitize.Accents(a), sanitize.Accents(b)) == 0
}
