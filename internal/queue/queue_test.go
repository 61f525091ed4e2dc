package queue

import (
	"testing"
	"time"

	"github.com/soderholm/streamverify/signal"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int]()
	q.Push(signal.Next(1))
	q.Push(signal.Next(2))
	q.Push(signal.Complete[int]())

	for _, want := range []signal.Kind{signal.KindNext, signal.KindNext, signal.KindComplete} {
		got, ok := q.Pop(time.Time{}, false)
		if !ok {
			t.Fatalf("expected a signal, got none")
		}
		if got.Kind != want {
			t.Errorf("expected kind %v, got %v", want, got.Kind)
		}
	}
}

func TestPopTimeout(t *testing.T) {
	q := New[int]()
	_, ok := q.Pop(time.Now().Add(20*time.Millisecond), true)
	if ok {
		t.Fatalf("expected timeout, got a signal")
	}
}

func TestPopUnblocksOnPush(t *testing.T) {
	q := New[string]()
	done := make(chan signal.Signal[string], 1)
	go func() {
		s, ok := q.Pop(time.Time{}, false)
		if !ok {
			return
		}
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(signal.Next("hello"))

	select {
	case s := <-done:
		if s.Value != "hello" {
			t.Errorf("expected value 'hello', got %q", s.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}
