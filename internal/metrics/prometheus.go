package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_chat_lookups_total",
			Help: "Knowledge base lookups by outcome",
		},
		[]string{"outcome"},
	)

	ChatSessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthbot_chat_sessions_open",
			Help: "Chat sessions currently open",
		},
	)

	ChatSessionsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthbot_chat_sessions_reaped_total",
			Help: "Idle chat sessions closed by the reaper",
		},
	)

	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_scans_total",
			Help: "Image scans by status",
		},
		[]string{"status"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthbot_scan_duration_seconds",
			Help:    "Image scan round-trip duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthbot_report_query_duration_seconds",
			Help:    "Report query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"perspective"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_report_query_total",
			Help: "Report queries by status",
		},
		[]string{"status"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthbot_retrieved_chunks",
			Help:    "Number of report chunks retrieved per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_documents_processed_total",
			Help: "Uploaded reports processed by file type",
		},
		[]string{"file_type"},
	)

	AppointmentsBooked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_appointments_total",
			Help: "Appointment operations by action",
		},
		[]string{"action"},
	)

	EmergencyReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthbot_emergency_reports_total",
			Help: "Emergency reports submitted by type",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(
		ChatLookups,
		ChatSessionsOpen,
		ChatSessionsReaped,
		ScansTotal,
		ScanDuration,
		QueryDuration,
		QueryTotal,
		RetrievedChunks,
		LLMTokensUsed,
		CacheHits,
		CacheMisses,
		DocumentsProcessed,
		AppointmentsBooked,
		EmergencyReports,
	)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
