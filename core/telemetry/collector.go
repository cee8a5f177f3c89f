package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/liveness"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

const namespace = "gateway"

type (
	RegistrySource   interface{ Stats() realtime.Stats }
	BrokerSource     interface{ Stats() realtime.BrokerStats }
	PublisherSource  interface{ Stats() eventlog.PublisherStats }
	ReaperSource     interface{ Stats() eventlog.ReaperStats }
	DispatcherSource interface{ Stats() dispatch.Stats }
	MonitorSource    interface{ Stats() liveness.Stats }
)

// CollectorOption attaches a stats source to the collector.
type CollectorOption func(*Collector)

func WithRegistry(s RegistrySource) CollectorOption     { return func(c *Collector) { c.registry = s } }
func WithBroker(s BrokerSource) CollectorOption         { return func(c *Collector) { c.broker = s } }
func WithPublisher(s PublisherSource) CollectorOption   { return func(c *Collector) { c.publisher = s } }
func WithReaper(s ReaperSource) CollectorOption         { return func(c *Collector) { c.reaper = s } }
func WithDispatcher(s DispatcherSource) CollectorOption { return func(c *Collector) { c.dispatcher = s } }
func WithMonitor(s MonitorSource) CollectorOption       { return func(c *Collector) { c.monitor = s } }

// Collector exposes component Stats() snapshots as Prometheus metrics.
// Values are read at scrape time; nothing is cached between scrapes.
type Collector struct {
	registry   RegistrySource
	broker     BrokerSource
	publisher  PublisherSource
	reaper     ReaperSource
	dispatcher DispatcherSource
	monitor    MonitorSource

	connectionsActive  *prometheus.Desc
	connectionsOpened  *prometheus.Desc
	connectionsClosed  *prometheus.Desc
	channels           *prometheus.Desc
	multicasts         *prometheus.Desc
	deliveries         *prometheus.Desc
	evictions          *prometheus.Desc
	eventsPublished    *prometheus.Desc
	eventsRejected     *prometheus.Desc
	locksReleased      *prometheus.Desc
	eventsDispatched   *prometheus.Desc
	handlerErrors      *prometheus.Desc
	eventsInFlight     *prometheus.Desc
	componentRunning   *prometheus.Desc
	livenessSweeps     *prometheus.Desc
	livenessEvicted    *prometheus.Desc
	livenessHeartbeats *prometheus.Desc
}

// NewCollector creates a collector over the given sources.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		connectionsActive:  desc("connections_active", "Currently registered connections."),
		connectionsOpened:  desc("connections_opened_total", "Connections registered since start."),
		connectionsClosed:  desc("connections_closed_total", "Connections disconnected since start."),
		channels:           desc("channels", "Channels with at least one subscriber."),
		multicasts:         desc("multicasts_total", "Multicast calls."),
		deliveries:         desc("deliveries_total", "Frame deliveries by result.", "result"),
		evictions:          desc("evictions_total", "Connections evicted after a failed delivery."),
		eventsPublished:    desc("events_published_total", "Events appended to the event log."),
		eventsRejected:     desc("events_rejected_total", "Publish calls rejected by validation."),
		locksReleased:      desc("event_locks_released_total", "Expired processing locks returned to pending."),
		eventsDispatched:   desc("events_dispatched_total", "Dispatch attempts by outcome.", "outcome"),
		handlerErrors:      desc("handler_errors_total", "Side-effect handler failures."),
		eventsInFlight:     desc("events_in_flight", "Events currently being processed."),
		componentRunning:   desc("component_running", "Whether a background component is running.", "component"),
		livenessSweeps:     desc("liveness_sweeps_total", "Liveness sweeps performed."),
		livenessEvicted:    desc("liveness_evicted_total", "Connections evicted as idle."),
		livenessHeartbeats: desc("liveness_heartbeats_total", "Heartbeat frames delivered."),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.connectionsActive, c.connectionsOpened, c.connectionsClosed, c.channels,
		c.multicasts, c.deliveries, c.evictions,
		c.eventsPublished, c.eventsRejected, c.locksReleased,
		c.eventsDispatched, c.handlerErrors, c.eventsInFlight, c.componentRunning,
		c.livenessSweeps, c.livenessEvicted, c.livenessHeartbeats,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.registry != nil {
		s := c.registry.Stats()
		ch <- gauge(c.connectionsActive, float64(s.Active))
		ch <- counter(c.connectionsOpened, float64(s.Connected))
		ch <- counter(c.connectionsClosed, float64(s.Disconnected))
		ch <- gauge(c.channels, float64(s.Channels))
	}
	if c.broker != nil {
		s := c.broker.Stats()
		ch <- counter(c.multicasts, float64(s.Multicasts))
		ch <- counter(c.deliveries, float64(s.Delivered), "delivered")
		ch <- counter(c.deliveries, float64(s.Failed), "failed")
		ch <- counter(c.evictions, float64(s.Evicted))
	}
	if c.publisher != nil {
		s := c.publisher.Stats()
		ch <- counter(c.eventsPublished, float64(s.Published))
		ch <- counter(c.eventsRejected, float64(s.Rejected))
	}
	if c.reaper != nil {
		s := c.reaper.Stats()
		ch <- counter(c.locksReleased, float64(s.Released))
		ch <- gauge(c.componentRunning, boolValue(s.IsRunning), "reaper")
	}
	if c.dispatcher != nil {
		s := c.dispatcher.Stats()
		ch <- counter(c.eventsDispatched, float64(s.Completed), "completed")
		ch <- counter(c.eventsDispatched, float64(s.Retried), "retried")
		ch <- counter(c.eventsDispatched, float64(s.Failed), "failed")
		ch <- counter(c.handlerErrors, float64(s.HandlerErrors))
		ch <- gauge(c.eventsInFlight, float64(s.ActiveEvents))
		ch <- gauge(c.componentRunning, boolValue(s.IsRunning), "dispatcher")
	}
	if c.monitor != nil {
		s := c.monitor.Stats()
		ch <- counter(c.livenessSweeps, float64(s.Sweeps))
		ch <- counter(c.livenessEvicted, float64(s.Evicted))
		ch <- counter(c.livenessHeartbeats, float64(s.Heartbeats))
		ch <- gauge(c.componentRunning, boolValue(s.IsRunning), "liveness")
	}
}

func gauge(d *prometheus.Desc, v float64, labels ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
}

func counter(d *prometheus.Desc, v float64, labels ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
