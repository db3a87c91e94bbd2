package cluster

import (
    "context"
    "strconv"
    "sync"
    "time"
)

type EventType string

const (
    EventNodeDown      EventType = "node_down"
    EventNodeUp        EventType = "node_up"
    EventNodeOut       EventType = "node_out"
    EventNodeIn        EventType = "node_in"
    EventMasterChanged EventType = "master_changed"
    EventViceChanged   EventType = "vice_changed"
)

// Event describes an actual-state change observed by a refresh.
type Event struct {
    Type    EventType
    At      time.Time
    Node    int
    Details map[string]string
}

// Subscribe returns a channel of events. The returned channel is buffered and
// closed automatically when ctx is done. Events may be dropped if the consumer
// is too slow (best-effort delivery).
func (m *Model) Subscribe(ctx context.Context) <-chan Event {
    ch := make(chan Event, 64)
    m.eb.add(ch)
    go func() {
        <-ctx.Done()
        m.eb.remove(ch)
        close(ch)
    }()
    return ch
}

func (m *Model) publishChanges(at time.Time, prev, next Node) {
    p, n := prev.Actual, next.Actual
    emit := func(t EventType, details map[string]string) {
        m.eb.publish(Event{Type: t, At: at, Node: next.ID, Details: details})
    }
    if p.Down != n.Down {
        if n.Down { emit(EventNodeDown, nil) } else { emit(EventNodeUp, nil) }
    }
    if p.Out != n.Out {
        if n.Out { emit(EventNodeOut, nil) } else { emit(EventNodeIn, nil) }
    }
    if p.Master != n.Master {
        emit(EventMasterChanged, map[string]string{"master": strconv.FormatBool(n.Master)})
    }
    if p.Vice != n.Vice {
        emit(EventViceChanged, map[string]string{"vice": strconv.FormatBool(n.Vice)})
    }
}

// internal event bus
type eventBus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
}

func (e *eventBus) add(ch chan Event) {
    e.mu.Lock()
    if e.subs == nil { e.subs = make(map[chan Event]struct{}) }
    e.subs[ch] = struct{}{}
    e.mu.Unlock()
}

func (e *eventBus) remove(ch chan Event) {
    e.mu.Lock()
    if e.subs != nil { delete(e.subs, ch) }
    e.mu.Unlock()
}

func (e *eventBus) publish(ev Event) {
    e.mu.Lock()
    for ch := range e.subs {
        select {
        case ch <- ev:
        default:
            // drop if receiver is slow
        }
    }
    e.mu.Unlock()
}
