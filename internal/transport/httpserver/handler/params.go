package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"family-circle-go/pkg/pagination"
)

func parseIntParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid int")
	}
	return parsed, nil
}

// parsePageQuery reads search, page and limit. Out-of-range values are
// clamped by pagination.Query.Normalize.
func parsePageQuery(r *http.Request) (pagination.Query, error) {
	values := r.URL.Query()

	page, err := parseIntParam(values.Get("page"), 1)
	if err != nil {
		return pagination.Query{}, fmt.Errorf("page must be a positive integer")
	}
	limit, err := parseIntParam(values.Get("limit"), pagination.DefaultPageSize)
	if err != nil {
		return pagination.Query{}, fmt.Errorf("limit must be a positive integer")
	}

	return pagination.Query{
		Search:   values.Get("search"),
		Page:     page,
		PageSize: limit,
	}.Normalize(), nil
}

// looseBool accepts a JSON boolean or the strings "true" and "false".
type looseBool struct {
	Value bool
	Set   bool
}

func (b *looseBool) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		b.Value, b.Set = true, true
	case "false":
		b.Value, b.Set = false, true
	default:
		return fmt.Errorf("expected a boolean, got %s", string(data))
	}
	return nil
}
