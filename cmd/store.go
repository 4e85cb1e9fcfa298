package main

import (
	"context"
	"strings"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/boundary"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

// initStore opens the configured store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// countyKey validates a --county flag value and returns the canonical store
// key, so "king, wa" and "King County, WA" address the same rows.
func countyKey(ref string) (string, error) {
	parsed, err := boundary.ParseCountyRef(ref)
	if err != nil {
		return "", err
	}
	return parsed.Key(), nil
}

// splitAndTrim splits a comma-separated flag value into trimmed parts.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// toUpper uppercases all strings in a slice.
func toUpper(ss []string) []string {
	for i, s := range ss {
		ss[i] = strings.ToUpper(s)
	}
	return ss
}
