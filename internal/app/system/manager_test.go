package system

import (
	"context"
	"fmt"
	"testing"
)

type recordingService struct {
	NoopService
	events   *[]string
	failNext bool
}

func (s *recordingService) Start(_ context.Context) error {
	if s.failNext {
		return fmt.Errorf("boom")
	}
	*s.events = append(*s.events, "start:"+s.ServiceName)
	return nil
}

func (s *recordingService) Stop(_ context.Context) error {
	*s.events = append(*s.events, "stop:"+s.ServiceName)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b"} {
		if err := m.Register(&recordingService{NoopService: NoopService{ServiceName: name}, events: &events}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "dup"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "dup"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestManagerStartFailureUnwindsStartedServices(t *testing.T) {
	var events []string
	m := NewManager()
	if err := m.Register(&recordingService{NoopService: NoopService{ServiceName: "ok"}, events: &events}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&recordingService{NoopService: NoopService{ServiceName: "bad"}, events: &events, failNext: true}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start failure")
	}
	want := []string{"start:ok", "stop:ok"}
	if len(events) != 2 || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, events)
	}
}
