package rc

import (
	"go.uber.org/zap"
)

// EventType identifies a block lifecycle transition.
type EventType uint8

const (
	// EventAllocated fires after a block is allocated and its value
	// constructed.
	EventAllocated EventType = iota
	// EventValueDestroyed fires after the value is destroyed in
	// place (strong count reached zero). The block still exists.
	EventValueDestroyed
	// EventBlockFreed fires after the backing memory is released
	// (weak count reached zero).
	EventBlockFreed
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventValueDestroyed:
		return "value_destroyed"
	case EventBlockFreed:
		return "block_freed"
	default:
		return "unknown"
	}
}

// Event describes a block lifecycle transition.
type Event struct {
	Shape Shape
	Type  EventType
	Addr  uint32
}

// Observer receives notifications about block lifecycle events.
type Observer interface {
	OnCellEvent(Event)
}

// LogObserver logs every lifecycle event at debug level.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) OnCellEvent(e Event) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug("cell event",
		zap.String("event", e.Type.String()),
		zap.Uint32("addr", e.Addr),
		zap.String("shape", e.Shape.Name()))
}
