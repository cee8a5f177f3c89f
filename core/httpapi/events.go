package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/response"
)

// CorrelationHeader supplies a correlation id when the body has none.
const CorrelationHeader = "X-Correlation-ID"

// PublishResponse is returned for accepted events.
type PublishResponse struct {
	EventID uuid.UUID `json:"event_id"`
}

// identityEventRequest is the body of an identity-targeted publish.
type identityEventRequest struct {
	Type          string          `json:"type"`
	SourceService string          `json:"source_service,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// ReplayResponse is returned after a replay request.
type ReplayResponse struct {
	EventID uuid.UUID       `json:"event_id"`
	Status  eventlog.Status `json:"status"`
}

func (a *API) publishEvent(r *http.Request) handler.Response {
	var params eventlog.PublishParams
	if err := a.decode(r, &params); err != nil {
		return response.Error(err)
	}
	if params.CorrelationID == "" {
		params.CorrelationID = r.Header.Get(CorrelationHeader)
	}

	id, err := a.publisher.Publish(r.Context(), params)
	if err != nil {
		return response.Error(err)
	}
	return response.Accepted(PublishResponse{EventID: id})
}

func (a *API) publishIdentityEvent(r *http.Request) handler.Response {
	identity := strings.TrimSpace(r.PathValue("identity"))
	if identity == "" {
		return response.Error(response.ErrBadRequest.WithMessage("identity is required"))
	}

	var req identityEventRequest
	if err := a.decode(r, &req); err != nil {
		return response.Error(err)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = r.Header.Get(CorrelationHeader)
	}

	id, err := a.publisher.Publish(r.Context(), eventlog.PublishParams{
		Type:          req.Type,
		SourceService: req.SourceService,
		Payload:       req.Payload,
		RoutingKey:    a.identityPrefix + identity,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return response.Error(err)
	}
	return response.Accepted(PublishResponse{EventID: id})
}

func (a *API) getEvent(r *http.Request) handler.Response {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return response.Error(errInvalidEventID)
	}

	ev, err := a.events.Get(r.Context(), id)
	if err != nil {
		return response.Error(err)
	}
	return response.JSON(ev)
}

func (a *API) listEvents(r *http.Request) handler.Response {
	q := r.URL.Query()
	filter := eventlog.Filter{
		Status:        eventlog.Status(q.Get("status")),
		Type:          q.Get("type"),
		CorrelationID: q.Get("correlation_id"),
		Limit:         100,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return response.Error(errInvalidStatus)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return response.Error(errInvalidLimit)
		}
		filter.Limit = min(n, 1000)
	}

	events, err := a.events.List(r.Context(), filter)
	if err != nil {
		return response.Error(err)
	}
	if events == nil {
		events = []*eventlog.Event{}
	}
	return response.JSON(events)
}

func (a *API) replayEvent(r *http.Request) handler.Response {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return response.Error(errInvalidEventID)
	}

	if err := a.replayer.Replay(r.Context(), id); err != nil {
		return response.Error(err)
	}
	a.logger.InfoContext(r.Context(), "event replay requested", logger.EventID(id))
	return response.Accepted(ReplayResponse{EventID: id, Status: eventlog.StatusPending})
}

// decode reads a single JSON object from a size-limited body.
func (a *API) decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, a.maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errInvalidBody.WithError(err)
	}
	return nil
}
