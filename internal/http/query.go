package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// parseTime accepts a calendar date or an RFC 3339 timestamp.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func queryTime(q url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// pageQuery reads offset and limit. Clamping is left to the services.
func pageQuery(q url.Values) (offset, limit int, err error) {
	if offset, err = queryInt(q, "offset"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

type pageDTO struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
