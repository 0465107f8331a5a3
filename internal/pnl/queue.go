package pnl

import "github.com/shopspring/decimal"

// Position - открытый лот одной стороны инструмента
type Position struct {
	Rate       decimal.Decimal `json:"rate"`
	Quantity   int             `json:"quantity"`
	Settlement bool            `json:"settlement,omitempty"` // открыт записью расчета
}

// PositionQueue - FIFO очередь открытых лотов одной стороны
//
// Слайс с индексом головы: ConsumeFromFirst не сдвигает элементы,
// освободившееся начало отбрасывается при следующем Append.
// Нулевое значение готово к использованию. Не потокобезопасна:
// каждый вызов движка строит свои очереди.
type PositionQueue struct {
	items []Position
	head  int
}

// Len возвращает количество открытых лотов
func (q *PositionQueue) Len() int {
	return len(q.items) - q.head
}

// PeekFirst возвращает самый старый лот без изменения очереди
func (q *PositionQueue) PeekFirst() (Position, bool) {
	if q.Len() == 0 {
		return Position{}, false
	}
	return q.items[q.head], true
}

// Append добавляет лот в конец. Количество <= 0 игнорируется.
func (q *PositionQueue) Append(p Position) {
	if p.Quantity <= 0 {
		return
	}
	if q.head > 0 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.items = append(q.items, p)
}

// ConsumeFromFirst уменьшает первый лот на min(quantity, first.Quantity)
// и удаляет его при достижении нуля.
//
// Возвращает поглощенный лот (его ставку и флаг расчета) и сматченное
// количество. На пустой очереди или при quantity <= 0 matched = 0.
func (q *PositionQueue) ConsumeFromFirst(quantity int) (consumed Position, matched int) {
	if quantity <= 0 || q.Len() == 0 {
		return Position{}, 0
	}

	first := &q.items[q.head]
	matched = quantity
	if first.Quantity < matched {
		matched = first.Quantity
	}

	consumed = *first
	consumed.Quantity = matched

	first.Quantity -= matched
	if first.Quantity == 0 {
		q.items[q.head] = Position{}
		q.head++
	}
	if q.Len() == 0 {
		q.items = q.items[:0]
		q.head = 0
	}
	return consumed, matched
}

// TotalQuantity - сумма лотов в очереди
func (q *PositionQueue) TotalQuantity() int {
	total := 0
	for _, p := range q.items[q.head:] {
		total += p.Quantity
	}
	return total
}

// Positions возвращает копию лотов в порядке FIFO
func (q *PositionQueue) Positions() []Position {
	out := make([]Position, q.Len())
	copy(out, q.items[q.head:])
	return out
}
