package websocket

import (
	"time"

	"tradejournal/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTradesChanged - сделки созданы, изменены или удалены.
	// Клиент перезапрашивает отчеты и позиции.
	MessageTypeTradesChanged MessageType = "tradesChanged"

	// MessageTypeSettlementCompleted - проведен недельный расчет
	MessageTypeSettlementCompleted MessageType = "settlementCompleted"

	// MessageTypeSettingsChanged - изменены лот или комиссия инструмента
	MessageTypeSettingsChanged MessageType = "settingsChanged"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TradesChangedMessage - изменение журнала (включая расчет)
type TradesChangedMessage struct {
	BaseMessage
	Data models.TradeChange `json:"data"`
}

// SettingsChangedMessage - новые настройки инструментов
type SettingsChangedMessage struct {
	BaseMessage
	Data models.TradingSettings `json:"data"`
}

// NewTradesChangedMessage выбирает тип по действию:
// расчет отправляется как settlementCompleted
func NewTradesChangedMessage(change models.TradeChange) *TradesChangedMessage {
	msgType := MessageTypeTradesChanged
	if change.Action == models.TradeSettled {
		msgType = MessageTypeSettlementCompleted
	}
	return &TradesChangedMessage{
		BaseMessage: BaseMessage{Type: msgType, Timestamp: time.Now()},
		Data:        change,
	}
}

// NewSettingsChangedMessage создает сообщение о настройках
func NewSettingsChangedMessage(settings models.TradingSettings) *SettingsChangedMessage {
	return &SettingsChangedMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSettingsChanged, Timestamp: time.Now()},
		Data:        settings,
	}
}
