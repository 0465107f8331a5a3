package pnl

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPositionQueueEmpty(t *testing.T) {
	var q PositionQueue

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if _, ok := q.PeekFirst(); ok {
		t.Error("PeekFirst() on empty queue should return ok=false")
	}
	if _, matched := q.ConsumeFromFirst(3); matched != 0 {
		t.Errorf("ConsumeFromFirst on empty queue matched %d, want 0", matched)
	}
	if got := q.Positions(); len(got) != 0 {
		t.Errorf("Positions() = %v, want empty", got)
	}
}

func TestPositionQueueAppendIgnoresNonPositive(t *testing.T) {
	var q PositionQueue
	q.Append(Position{Rate: decimal.NewFromInt(100), Quantity: 0})
	q.Append(Position{Rate: decimal.NewFromInt(100), Quantity: -2})

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestPositionQueueConsumeFromFirst(t *testing.T) {
	tests := []struct {
		name        string
		positions   []int
		consume     int
		wantRate    int64
		wantMatched int
		wantLeft    []int
	}{
		{
			name:        "partial first",
			positions:   []int{3, 2},
			consume:     1,
			wantRate:    100,
			wantMatched: 1,
			wantLeft:    []int{2, 2},
		},
		{
			name:        "exact first removes it",
			positions:   []int{3, 2},
			consume:     3,
			wantRate:    100,
			wantMatched: 3,
			wantLeft:    []int{2},
		},
		{
			name:        "request larger than first is capped",
			positions:   []int{3, 2},
			consume:     5,
			wantRate:    100,
			wantMatched: 3,
			wantLeft:    []int{2},
		},
		{
			name:        "zero request is no-op",
			positions:   []int{3},
			consume:     0,
			wantMatched: 0,
			wantLeft:    []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q PositionQueue
			for i, qty := range tt.positions {
				q.Append(Position{Rate: decimal.NewFromInt(int64(100 + i*10)), Quantity: qty})
			}

			consumed, matched := q.ConsumeFromFirst(tt.consume)
			if matched != tt.wantMatched {
				t.Errorf("matched = %d, want %d", matched, tt.wantMatched)
			}
			if matched > 0 && !consumed.Rate.Equal(decimal.NewFromInt(tt.wantRate)) {
				t.Errorf("rate = %s, want %d", consumed.Rate, tt.wantRate)
			}

			left := q.Positions()
			if len(left) != len(tt.wantLeft) {
				t.Fatalf("left %d positions, want %d", len(left), len(tt.wantLeft))
			}
			for i, want := range tt.wantLeft {
				if left[i].Quantity != want {
					t.Errorf("position %d quantity = %d, want %d", i, left[i].Quantity, want)
				}
			}
		})
	}
}

func TestPositionQueueFIFOAfterCompaction(t *testing.T) {
	var q PositionQueue
	for i := 1; i <= 4; i++ {
		q.Append(Position{Rate: decimal.NewFromInt(int64(i)), Quantity: 1})
	}
	q.ConsumeFromFirst(1)
	q.ConsumeFromFirst(1)
	q.ConsumeFromFirst(1)
	q.Append(Position{Rate: decimal.NewFromInt(5), Quantity: 1})

	var rates []int64
	for q.Len() > 0 {
		p, _ := q.ConsumeFromFirst(1)
		rates = append(rates, p.Rate.IntPart())
	}

	want := []int64{4, 5}
	if len(rates) != len(want) {
		t.Fatalf("rates = %v, want %v", rates, want)
	}
	for i := range want {
		if rates[i] != want[i] {
			t.Errorf("rates = %v, want %v", rates, want)
		}
	}
}

func TestPositionQueueTotalQuantity(t *testing.T) {
	var q PositionQueue
	q.Append(Position{Rate: decimal.NewFromInt(100), Quantity: 2})
	q.Append(Position{Rate: decimal.NewFromInt(110), Quantity: 5})
	q.ConsumeFromFirst(1)

	if got := q.TotalQuantity(); got != 6 {
		t.Errorf("TotalQuantity() = %d, want 6", got)
	}
}
