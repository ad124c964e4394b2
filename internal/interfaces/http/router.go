package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obsprom "github.com/dreschagin/aip-monitor/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/aip-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/aip-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux              *http.ServeMux
	healthHandler    *handler.HealthHandler
	websocketHandler *handler.WebSocketHandler
	gatherer         prometheus.Gatherer
	metrics          *obsprom.Metrics
	wsLimiter        *middleware.IPRateLimiter
	logger           *logger.Logger
}

// NewRouter создает новый router. websocketHandler и wsLimiter могут быть nil:
// тогда /ws не регистрируется или не ограничивается.
func NewRouter(
	healthHandler *handler.HealthHandler,
	websocketHandler *handler.WebSocketHandler,
	gatherer prometheus.Gatherer,
	metrics *obsprom.Metrics,
	wsLimiter *middleware.IPRateLimiter,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		healthHandler:    healthHandler,
		websocketHandler: websocketHandler,
		gatherer:         gatherer,
		metrics:          metrics,
		wsLimiter:        wsLimiter,
		logger:           logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	rt.mux.HandleFunc("GET /healthz", rt.healthHandler.Live)
	rt.mux.HandleFunc("GET /readyz", rt.healthHandler.Ready)
	rt.mux.Handle("GET /metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	if rt.websocketHandler != nil {
		var ws http.Handler = http.HandlerFunc(rt.websocketHandler.HandleConnection)
		if rt.wsLimiter != nil {
			ws = middleware.RateLimit(rt.wsLimiter)(ws)
		}
		rt.mux.Handle("GET /ws", ws)
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}
