package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// Hub управляет WebSocket клиентами и рассылает им записи каждого цикла.
// Реализует интерфейс port.Exporter.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast сообщений
	broadcast chan Message

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}

	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Initialize запускает цикл hub'а. Схема не используется: клиенты получают
// записи в JSON с теми же ключами.
func (h *Hub) Initialize(ctx context.Context, schema []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.Run(runCtx)

	return nil
}

// Write ставит пакет записей в очередь рассылки. Медленные клиенты
// не задерживают цикл опроса: при переполненной очереди пакет отбрасывается.
func (h *Hub) Write(ctx context.Context, records []entity.Record) error {
	h.Broadcast(records)
	return nil
}

// Close останавливает hub и отключает всех клиентов
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run обрабатывает регистрации и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		done := h.done
		h.mu.Unlock()

		h.logger.Info("WebSocket hub stopped")
		if done != nil {
			close(done)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Канал клиента заполнен, закрываем соединение
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client channel full, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register регистрирует нового клиента. Возвращает false, если hub остановлен.
func (h *Hub) Register(client *Client) bool {
	done := h.doneChan()
	if done == nil {
		return false
	}
	select {
	case h.register <- client:
		return true
	case <-done:
		return false
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	done := h.doneChan()
	if done == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-done:
	}
}

// Broadcast отправляет записи всем клиентам
func (h *Hub) Broadcast(records []entity.Record) {
	select {
	case h.broadcast <- Message{Type: MessageTypeRecords, Data: records}:
	default:
		h.logger.Warn("Broadcast channel full, dropping records")
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) doneChan() chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cancel == nil {
		return nil
	}
	return h.done
}

const MessageTypeRecords = "records"

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string          `json:"type"`
	Data []entity.Record `json:"data"`
}
