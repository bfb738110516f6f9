package shared

import (
	"net/http"
	"strconv"
	"strings"
)

type Pagination struct {
	Skip  int
	Limit int
}

// ParsePagination reads skip and limit. Malformed or negative values are
// reported on v; limits above maxLimit are clamped.
func ParsePagination(r *http.Request, v *Validator, defaultLimit, maxLimit int) Pagination {
	p := Pagination{Skip: 0, Limit: defaultLimit}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("skip")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("skip", "must be a non-negative integer")
		} else {
			p.Skip = n
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("limit", "must be a positive integer")
		} else {
			p.Limit = n
		}
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}
