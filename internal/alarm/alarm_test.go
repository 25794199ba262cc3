package alarm

import (
	"testing"
	"time"

	"github.com/fraudpipeline/core/internal/domain"
	"github.com/google/uuid"
)

func mkInferred() domain.InferredTransaction {
	return domain.InferredTransaction{
		Transaction: domain.Transaction{ID: uuid.New(), Amount: 5, LastName: "Smith"},
	}
}

func TestLogAlarmAlwaysSucceeds(t *testing.T) {
	a := NewLog(nil)
	for i := 0; i < 10; i++ {
		if err := a.Trigger(mkInferred()); err != nil {
			t.Fatalf("expected log alarm to always succeed, got %v", err)
		}
	}
}

type countingInner struct{ calls int }

func (c *countingInner) Trigger(domain.InferredTransaction) error {
	c.calls++
	return nil
}

func TestThrottledAllowsUpToCapacity(t *testing.T) {
	inner := &countingInner{}
	th := NewThrottled(inner, 3, time.Hour)
	defer th.Close()

	for i := 0; i < 3; i++ {
		if err := th.Trigger(mkInferred()); err != nil {
			t.Fatalf("unexpected throttle at %d: %v", i, err)
		}
	}
	if err := th.Trigger(mkInferred()); err == nil {
		t.Fatal("expected 4th trigger to be throttled")
	}
	if inner.calls != 3 {
		t.Fatalf("expected inner sink called 3 times, got %d", inner.calls)
	}
}

type failingInner struct{ calls int }

func (f *failingInner) Trigger(domain.InferredTransaction) error {
	f.calls++
	return &domain.AlarmError{Reason: "boom"}
}

func TestFanoutTriggersEverySink(t *testing.T) {
	a := &countingInner{}
	b := &countingInner{}
	f := NewFanout(a, b)

	if err := f.Trigger(mkInferred()); err != nil {
		t.Fatalf("expected no error when all sinks succeed, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both sinks triggered, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestFanoutTriesAllSinksEvenAfterFailure(t *testing.T) {
	failing := &failingInner{}
	ok := &countingInner{}
	f := NewFanout(failing, ok)

	err := f.Trigger(mkInferred())
	if err == nil {
		t.Fatal("expected fanout to surface the failing sink's error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("expected both sinks attempted, got failing=%d ok=%d", failing.calls, ok.calls)
	}
}

func TestFanoutSkipsNilSinks(t *testing.T) {
	ok := &countingInner{}
	f := NewFanout(nil, ok)
	if err := f.Trigger(mkInferred()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.calls != 1 {
		t.Fatalf("expected the non-nil sink to be triggered")
	}
}

func TestThrottledRefills(t *testing.T) {
	inner := &countingInner{}
	th := NewThrottled(inner, 1, 20*time.Millisecond)
	defer th.Close()

	if err := th.Trigger(mkInferred()); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := th.Trigger(mkInferred()); err == nil {
		t.Fatal("expected second trigger to be throttled before refill")
	}
	time.Sleep(40 * time.Millisecond)
	if err := th.Trigger(mkInferred()); err != nil {
		t.Fatalf("expected trigger to succeed after refill, got %v", err)
	}
}
