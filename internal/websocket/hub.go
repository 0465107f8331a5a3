package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - очередь сообщений hub'а
const broadcastBufferSize = 256

// envelope - сериализованное сообщение и адресат
type envelope struct {
	userID string
	data   []byte
}

// Hub управляет WebSocket соединениями пользователей
//
// Назначение:
// Оповещает открытые вкладки пользователя об изменениях журнала,
// чтобы отчеты обновлялись без polling.
//
// Функции:
// - Регистрация и отмена регистрации клиентов
// - Рассылка сообщений только соединениям одного пользователя
// - Отключение клиентов, не успевающих читать
// - Потокобезопасная работа с клиентами (sync.RWMutex)
//
// Использование:
// 1. hub := NewHub()
// 2. go hub.Run()
// 3. сервисы вызывают NotifyTradesChanged / NotifySettingsChanged
type Hub struct {
	// userID -> соединения пользователя
	clients map[string]map[*Client]struct{}

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	dropped atomic.Int64
	mu      sync.RWMutex
	log     *utils.Logger
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        utils.L().WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub до вызова Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("client connected", utils.UserID(client.userID), utils.Count(h.ClientCount()))

		case client := <-h.unregister:
			h.remove(client)
			h.log.Debug("client disconnected", utils.UserID(client.userID), utils.Count(h.ClientCount()))

		case env := <-h.broadcast:
			// копируем список под коротким RLock, отправляем без блокировки
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients[env.userID]))
			for c := range h.clients[env.userID] {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- env.data:
				default:
					// клиент не успевает читать
					h.remove(c)
					h.log.Warn("slow client removed", utils.UserID(c.userID))
				}
			}
		}
	}
}

func (h *Hub) addClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stop останавливает Run и закрывает все соединения
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

// Send сериализует сообщение и ставит его в очередь пользователю.
// Не блокирует: при переполненной очереди сообщение отбрасывается.
func (h *Hub) Send(userID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("marshal websocket message", utils.Err(err))
		return
	}
	h.SendRaw(userID, data)
}

// SendRaw отправляет уже сериализованные данные
func (h *Hub) SendRaw(userID string, data []byte) {
	select {
	case h.broadcast <- envelope{userID: userID, data: data}:
	default:
		h.dropped.Add(1)
	}
}

// NotifyTradesChanged - сделки пользователя изменились
func (h *Hub) NotifyTradesChanged(userID string, change models.TradeChange) {
	h.Send(userID, NewTradesChangedMessage(change))
}

// NotifySettingsChanged - настройки пользователя изменились
func (h *Hub) NotifySettingsChanged(userID string, settings models.TradingSettings) {
	h.Send(userID, NewSettingsChangedMessage(settings))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

// UserClientCount - соединения одного пользователя
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// DroppedMessages - сообщения, отброшенные из-за переполнения очереди
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
