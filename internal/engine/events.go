package engine

// Event is a notable occurrence in the system.
type Event struct {
	Day         uint64         `json:"day"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "death", "transfer", "command", "milestone"
	Meta        map[string]any `json:"meta,omitempty"`
}

// maxEvents bounds the in-memory event log; older entries fall off.
const maxEvents = 500

// EmitEvent records an event and fans it out to live subscribers. A
// slow subscriber misses events rather than blocking the simulation.
func (s *Simulation) EmitEvent(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers an event channel for streaming consumers.
func (s *Simulation) Subscribe() (uint64, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, 64)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe drops a subscriber and closes its channel.
func (s *Simulation) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	start := len(s.Events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}
