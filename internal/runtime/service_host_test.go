package runtime

import (
	"context"
	"fmt"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeService) Start(ctx context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Shutdown(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

func register(t *testing.T, host *ServiceHost, svc *fakeService) {
	t.Helper()
	if err := host.Register(svc.name, func(ctx context.Context) (Service, error) {
		return svc, nil
	}); err != nil {
		t.Fatalf("register %s: %v", svc.name, err)
	}
}

func TestStartAndStopOrder(t *testing.T) {
	var log []string
	host := NewServiceHost()
	register(t, host, &fakeService{name: "a", log: &log})
	register(t, host, &fakeService{name: "b", log: &log})

	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := host.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	var log []string
	host := NewServiceHost()
	register(t, host, &fakeService{name: "a", log: &log})
	register(t, host, &fakeService{name: "b", startErr: fmt.Errorf("boom"), log: &log})

	if err := host.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}

	var stopped bool
	for _, entry := range log {
		if entry == "stop:a" {
			stopped = true
		}
	}
	if !stopped {
		t.Fatalf("first service not rolled back: %v", log)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	var log []string
	host := NewServiceHost()
	register(t, host, &fakeService{name: "a", log: &log})

	err := host.Register("a", func(ctx context.Context) (Service, error) {
		return &fakeService{name: "a", log: &log}, nil
	})
	if err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRegisterAfterStart(t *testing.T) {
	var log []string
	host := NewServiceHost()
	register(t, host, &fakeService{name: "a", log: &log})
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer host.Stop(context.Background())

	if err := host.Register("late", func(ctx context.Context) (Service, error) {
		return &fakeService{name: "late", log: &log}, nil
	}); err == nil {
		t.Fatal("expected registration error after start")
	}
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	host := NewServiceHost()
	if err := host.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
