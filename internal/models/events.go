package models

// TradeChangeAction - что произошло с записями
type TradeChangeAction string

const (
	TradeCreated TradeChangeAction = "created"
	TradeUpdated TradeChangeAction = "updated"
	TradeDeleted TradeChangeAction = "deleted"
	TradeSettled TradeChangeAction = "settled"
)

// TradeChange - событие для подписчиков (клиент перезапрашивает отчеты)
type TradeChange struct {
	Action      TradeChangeAction `json:"action"`
	TradeIDs    []string          `json:"trade_ids"`
	Instruments []Instrument      `json:"instruments"`
	Date        string            `json:"date,omitempty"` // дата расчета для settled
}
