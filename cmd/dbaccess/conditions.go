package main

import (
	"fmt"
	"strings"
)

// parseConditions turns repeated "column:value" flags into a condition map. The value
// keeps everything after the first colon, so "created:>=2024-01-01 10:00" works.
func parseConditions(flags []string) (map[string][]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	conditions := make(map[string][]string, len(flags))
	for _, flag := range flags {
		column, value, ok := strings.Cut(flag, ":")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("condition %q must look like column:value", flag)
		}
		conditions[column] = append(conditions[column], value)
	}
	return conditions, nil
}
