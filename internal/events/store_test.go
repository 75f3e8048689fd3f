package events

import "testing"

func TestStore_RingBuffer(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(Event{Type: EventStateChanged, Gateway: "home"})
	}

	if s.Count() != 3 {
		t.Errorf("count: got %d, want 3", s.Count())
	}
	if s.LastID() != 5 {
		t.Errorf("last id: got %d, want 5", s.LastID())
	}

	last := s.GetLast(10)
	if len(last) != 3 || last[0].ID != 5 || last[2].ID != 3 {
		t.Errorf("newest first: got %+v", last)
	}
}

func TestStore_GetSince(t *testing.T) {
	s := NewStore(10)
	s.Add(Event{Type: EventDiscovery})
	s.Add(Event{Type: EventCommandIssued, EntityID: "switch.porch"})
	s.Add(Event{Type: EventStateChanged, EntityID: "switch.porch", State: "on"})

	got := s.GetSince(1)
	if len(got) != 2 {
		t.Fatalf("since 1: got %d events, want 2", len(got))
	}
	if got[0].Type != EventStateChanged || got[1].Type != EventCommandIssued {
		t.Errorf("order: got %s, %s", got[0].Type, got[1].Type)
	}

	if len(s.GetSince(s.LastID())) != 0 {
		t.Error("nothing should be newer than the last id")
	}
}

func TestStore_AddStampsTime(t *testing.T) {
	s := NewStore(0)
	e := s.Add(Event{Type: EventRefreshFailed})
	if e.Timestamp.IsZero() || e.ID != 1 {
		t.Errorf("stored event: got %+v", e)
	}
}
