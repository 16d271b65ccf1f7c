package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

// optionalInt reads an integer query parameter. Absent or blank values give
// nil; anything else that is not an integer is an input error.
func optionalInt(query url.Values, key string) (*int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidInput, key)
	}
	return &n, nil
}

// pathInt reads an integer path value.
func pathInt(r *http.Request, key string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidInput, key)
	}
	return n, nil
}

// monthsBack reads ?months=, defaulting to ledger.DefaultTrendMonths.
func monthsBack(query url.Values) (int, error) {
	n, err := optionalInt(query, "months")
	if err != nil {
		return 0, err
	}
	if n == nil {
		return ledger.DefaultTrendMonths, nil
	}
	return *n, nil
}

// dateRange reads the required ?from= and ?to= dates.
func dateRange(query url.Values) (core.Date, core.Date, error) {
	from, err := requiredDate(query, "from")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := requiredDate(query, "to")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, nil
}

func requiredDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, fmt.Errorf("%w: %s is required", core.ErrInvalidInput, key)
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
