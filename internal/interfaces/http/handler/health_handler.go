package handler

import "net/http"

// ReadinessProbe сообщает, завершился ли хотя бы один цикл опроса
type ReadinessProbe func() bool

// HealthHandler отвечает на liveness и readiness пробы
type HealthHandler struct {
	ready ReadinessProbe
}

func NewHealthHandler(ready ReadinessProbe) *HealthHandler {
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
