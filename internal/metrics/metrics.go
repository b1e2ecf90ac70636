package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Station metrics
	JoinAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_join_attempts_total",
			Help: "Total number of station join attempts by outcome",
		},
		[]string{"outcome"}, // "connected", "timeout", "failed", "retry"
	)

	JoinDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wifiportal_join_duration_seconds",
			Help:    "Time spent waiting for a join to resolve",
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 7.5, 10, 15, 30},
		},
	)

	NetworkCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wifiportal_network_cycles_total",
			Help: "Total number of times reconnection gave up on a network and moved to the next",
		},
	)

	StationConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wifiportal_station_connected",
			Help: "1 when the station link is up",
		},
	)

	// Credential metrics
	CredentialsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wifiportal_credentials_stored",
			Help: "Number of saved networks",
		},
	)

	CredentialSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_credential_saves_total",
			Help: "Total number of credential saves by result",
		},
		[]string{"result"}, // "ok", "invalid", "persist_failed"
	)

	// Portal metrics
	PortalActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wifiportal_portal_active",
			Help: "1 while the captive portal is serving",
		},
	)

	PortalStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wifiportal_portal_starts_total",
			Help: "Total number of captive portal starts",
		},
	)

	PortalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_portal_http_requests_total",
			Help: "Total number of captive portal HTTP requests",
		},
		[]string{"route", "status"},
	)

	PortalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wifiportal_portal_http_request_duration_seconds",
			Help:    "Captive portal HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	DNSQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_dns_queries_total",
			Help: "Total number of DNS questions answered by the captive responder",
		},
		[]string{"qtype"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wifiportal_scan_duration_seconds",
			Help:    "Duration of radio scans requested through the portal",
			Buckets: []float64{0.5, 1, 2, 3, 5, 10},
		},
	)

	// Orchestrator metrics
	Mode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wifiportal_mode",
			Help: "Current orchestrator mode (1 for the active mode)",
		},
		[]string{"mode"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_mode_transitions_total",
			Help: "Total number of orchestrator mode transitions",
		},
		[]string{"from", "to"},
	)

	// Event hub metrics
	EventClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wifiportal_event_clients",
			Help: "Number of connected event websocket clients",
		},
	)

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifiportal_events_broadcast_total",
			Help: "Total number of events broadcast to websocket clients",
		},
		[]string{"type"},
	)
)

// knownModes are reset on every mode change so exactly one reads 1
var knownModes = []string{"provisioning", "stationed", "halted"}

// RecordJoin records the outcome of one join attempt
func RecordJoin(outcome string, duration time.Duration) {
	JoinAttempts.WithLabelValues(outcome).Inc()
	if duration > 0 {
		JoinDuration.Observe(duration.Seconds())
	}
}

// RecordPortalRequest records a portal HTTP request
func RecordPortalRequest(route string, status int, duration time.Duration) {
	PortalRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	PortalRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSave records a credential save result
func RecordSave(result string, stored int) {
	CredentialSaves.WithLabelValues(result).Inc()
	CredentialsStored.Set(float64(stored))
}

// SetMode records an orchestrator mode transition
func SetMode(from, to string) {
	for _, m := range knownModes {
		Mode.WithLabelValues(m).Set(0)
	}
	Mode.WithLabelValues(to).Set(1)
	if from != to {
		Transitions.WithLabelValues(from, to).Inc()
	}
}

// SetPortalActive records whether the portal is serving
func SetPortalActive(active bool) {
	if active {
		PortalActive.Set(1)
		PortalStarts.Inc()
		return
	}
	PortalActive.Set(0)
}

// SetStationConnected records the station link state
func SetStationConnected(connected bool) {
	if connected {
		StationConnected.Set(1)
		return
	}
	StationConnected.Set(0)
}
