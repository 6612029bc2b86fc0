package service

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
