package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

func queryParam[T any](r *http.Request, key string, fallback T, kind string, parse func(string) (T, error)) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, pkgerrors.New(pkgerrors.CodeValidation, key+" must be "+kind).
			WithDetails(map[string]any{"field": key})
	}
	return v, nil
}

// ParseQueryInt reads an optional integer query parameter bounded by
// [min, max]. Missing means fallback.
func ParseQueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	v, err := queryParam(r, key, fallback, "an integer", strconv.Atoi)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	return queryParam(r, key, false, "a boolean", strconv.ParseBool)
}
