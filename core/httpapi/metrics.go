package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/metrics"
	"github.com/dmitrymomot/eventgateway/core/response"
)

const dimensionPrefix = "dim."

// MetricsResponse wraps the buckets of a metrics query.
type MetricsResponse struct {
	Name    string           `json:"name"`
	From    *time.Time       `json:"from,omitempty"`
	To      *time.Time       `json:"to,omitempty"`
	Buckets []metrics.Bucket `json:"buckets"`
}

func (a *API) queryMetrics(r *http.Request) handler.Response {
	q := r.URL.Query()
	query := metrics.Query{Name: r.PathValue("name")}

	var err error
	if query.From, err = parseTime(q.Get("from")); err != nil {
		return response.Error(errInvalidTime)
	}
	if query.To, err = parseTime(q.Get("to")); err != nil {
		return response.Error(errInvalidTime)
	}

	for key, values := range q {
		name, ok := strings.CutPrefix(key, dimensionPrefix)
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if query.Dimensions == nil {
			query.Dimensions = make(map[string]string)
		}
		query.Dimensions[name] = values[0]
	}

	buckets, err := a.metrics.Query(r.Context(), query)
	if err != nil {
		return response.Error(err)
	}
	if buckets == nil {
		buckets = []metrics.Bucket{}
	}

	resp := MetricsResponse{Name: query.Name, Buckets: buckets}
	if !query.From.IsZero() {
		resp.From = &query.From
	}
	if !query.To.IsZero() {
		resp.To = &query.To
	}
	return response.JSON(resp)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
