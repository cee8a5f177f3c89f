package eventlog

import (
	"maps"
	"strings"
)

// Router resolves an event's routing key to broker channels.
// An explicit routing key wins; otherwise the static route for the event type
// is used, falling back to a channel named after the type.
type Router struct {
	routes map[string][]string
}

// NewRouter builds a router from type -> channels entries. Channel lists use "|"
// as separator, e.g. {"order_completed": "orders|dashboard"}.
func NewRouter(routes map[string]string) *Router {
	r := &Router{routes: make(map[string][]string, len(routes))}
	for typ, chans := range routes {
		if list := splitList(chans, "|"); len(list) > 0 {
			r.routes[strings.TrimSpace(typ)] = list
		}
	}
	return r
}

// Resolve returns the channels an event is delivered to. Never empty for a
// non-empty type.
func (r *Router) Resolve(eventType, routingKey string) []string {
	if chans := SplitRoutingKey(routingKey); len(chans) > 0 {
		return chans
	}
	if r != nil {
		if chans, ok := r.routes[eventType]; ok {
			out := make([]string, len(chans))
			copy(out, chans)
			return out
		}
	}
	if eventType == "" {
		return nil
	}
	return []string{eventType}
}

// Routes returns a copy of the static routing table.
func (r *Router) Routes() map[string][]string {
	return maps.Clone(r.routes)
}

// SplitRoutingKey splits a comma separated routing key into unique channel names
// preserving their first-seen order.
func SplitRoutingKey(key string) []string {
	return splitList(key, ",")
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
