// Package notify is the one-way event sink the pricing loop uses to tell a
// GUI (or any other observer) what it is doing, without taking a dependency
// on any particular UI toolkit.
package notify

import (
	"encoding/json"

	"wfm-pricer/internal/logger"
)

// Operation mirrors the three mutation kinds a GUI list view needs to stay
// in sync with the backend: replace everything, upsert one row, or drop one
// row.
type Operation string

const (
	OpSet            Operation = "set"
	OpCreateOrUpdate Operation = "create_or_update"
	OpDelete         Operation = "delete"
)

// Channel names the GUI-facing event streams the pricing loop publishes to.
type Channel string

const (
	ChannelStockItems Channel = "stock_items"
	ChannelOrders     Channel = "orders"
)

// Event is one GUI update: which channel it belongs to, what kind of
// mutation it represents, and the JSON-ready payload.
type Event struct {
	Channel   Channel         `json:"channel"`
	Operation Operation       `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Emitter is the GUI/notify bridge the pricing loop talks to. Implementors
// must not block the caller for long; the pricing loop has no backpressure
// handling of its own.
type Emitter interface {
	// Message reports a short, human-readable progress string (e.g.
	// "checking_item") with optional structured detail, for a status line
	// rather than a log file.
	Message(key string, detail map[string]any)
	// StockUpdate reports a mutation to the owned-inventory view.
	StockUpdate(op Operation, payload any)
	// OrderUpdate reports a mutation to the live-orders view.
	OrderUpdate(op Operation, payload any)
}

// encode marshals v to JSON, falling back to a null payload on failure —
// an emitter must never propagate a marshal error back into the pricing
// loop over a side channel that exists purely for observability.
func encode(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

// LogEmitter is the default Emitter: it has no GUI attached, so every event
// is simply logged. Safe to use standalone (a headless deployment never
// needs anything more than this).
type LogEmitter struct{}

func NewLogEmitter() LogEmitter { return LogEmitter{} }

func (LogEmitter) Message(key string, detail map[string]any) {
	if len(detail) == 0 {
		logger.Info("Pricer", key)
		return
	}
	raw, _ := json.Marshal(detail)
	logger.Info("Pricer", key+" "+string(raw))
}

func (LogEmitter) StockUpdate(op Operation, payload any) {
	logger.Info("Pricer", "stock_update "+string(op))
	_ = encode(payload)
}

func (LogEmitter) OrderUpdate(op Operation, payload any) {
	logger.Info("Pricer", "order_update "+string(op))
	_ = encode(payload)
}

// ChannelEmitter fans every event out to a buffered channel for a GUI
// bridge (e.g. a websocket or desktop-webview host) to drain. Events are
// dropped, never blocked on, once the buffer is full — a slow or absent
// GUI must never stall the pricing loop.
type ChannelEmitter struct {
	events chan Event
}

// NewChannelEmitter creates a ChannelEmitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelEmitter{events: make(chan Event, buffer)}
}

// Events returns the receive side of the event stream.
func (c *ChannelEmitter) Events() <-chan Event {
	return c.events
}

func (c *ChannelEmitter) push(evt Event) {
	select {
	case c.events <- evt:
	default:
		logger.Warn("Pricer", "notify channel full, dropping event")
	}
}

func (c *ChannelEmitter) Message(key string, detail map[string]any) {
	c.push(Event{Channel: "message:" + Channel(key), Operation: OpSet, Payload: encode(detail)})
}

func (c *ChannelEmitter) StockUpdate(op Operation, payload any) {
	c.push(Event{Channel: ChannelStockItems, Operation: op, Payload: encode(payload)})
}

func (c *ChannelEmitter) OrderUpdate(op Operation, payload any) {
	c.push(Event{Channel: ChannelOrders, Operation: op, Payload: encode(payload)})
}
