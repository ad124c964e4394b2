package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/dreschagin/aip-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// WebSocketHandler подключает клиентов к потоку записей
type WebSocketHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler создает новый handler
func NewWebSocketHandler(hub *wsInfra.Hub, allowedOrigins []string, logger *logger.Logger) *WebSocketHandler {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	handler := &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: originMap,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     handler.checkOrigin,
	}

	return handler
}

// checkOrigin пропускает клиентов без Origin (не браузеры), запросы с того же
// хоста и origin'ы из списка.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if strings.EqualFold(parsed.Host, r.Host) {
		return true
	}

	normalized := parsed.Scheme + "://" + parsed.Host
	if _, ok := h.allowedOrigins[normalized]; ok {
		return true
	}
	_, ok := h.allowedOrigins["*"]
	return ok
}

// HandleConnection обрабатывает новое WebSocket соединение
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err.Error(),
		)
		return
	}

	client := wsInfra.NewClient(h.hub, conn, h.logger)
	h.logger.Debug("WebSocket client connected", "client_id", client.ID(), "remote_addr", r.RemoteAddr)

	// Serve блокирует до закрытия соединения; http.Server уже выделил goroutine
	client.Serve()
}
