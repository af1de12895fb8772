// Вспомогательные обобщенные функции для преобразования слайсов и множеств.
package utils

import (
	"strings"
)

func SliceToSet[T comparable](ids []T) map[T]struct{} {
	res := make(map[T]struct{}, len(ids))
	for _, id := range ids {
		res[id] = struct{}{}
	}
	return res
}

func CheckInSlice[T comparable](in []T, all ...T) bool {
	set := SliceToSet(in)
	for _, el := range all {
		if _, ok := set[el]; ok {
			return true
		}
	}
	return false
}

func SliceToSlice[T any, U any](in *[]T, f func(*T) U) []U {
	if in == nil {
		return make([]U, 0)
	}
	out := make([]U, len(*in))
	for i := range *in {
		out[i] = f(&(*in)[i])
	}
	return out
}

// UniqueStrings убирает пустые строки и повторы, сохраняя порядок и регистр первого вхождения.
func UniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TotalPages возвращает число страниц для total записей, не меньше одной.
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
