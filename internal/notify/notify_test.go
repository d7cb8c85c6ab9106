package notify

import "testing"

func TestLogEmitter_NoPanic(t *testing.T) {
	e := NewLogEmitter()
	e.Message("checking_item", map[string]any{"current": 1, "total": 5})
	e.Message("stating", nil)
	e.StockUpdate(OpCreateOrUpdate, map[string]any{"id": 1})
	e.OrderUpdate(OpDelete, map[string]any{"id": "abc"})
}

func TestChannelEmitter_DeliversEvent(t *testing.T) {
	e := NewChannelEmitter(4)
	e.StockUpdate(OpSet, map[string]any{"owned": 3})

	select {
	case evt := <-e.Events():
		if evt.Channel != ChannelStockItems || evt.Operation != OpSet {
			t.Errorf("event = %+v", evt)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestChannelEmitter_DropsWhenFull(t *testing.T) {
	e := NewChannelEmitter(1)
	e.OrderUpdate(OpSet, nil)
	e.OrderUpdate(OpSet, nil) // buffer full, must not block or panic

	count := 0
	for {
		select {
		case <-e.Events():
			count++
		default:
			if count != 1 {
				t.Errorf("drained %d events, want 1 (second push should have been dropped)", count)
			}
			return
		}
	}
}
