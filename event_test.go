package track

import (
	"reflect"
	"testing"
)

func TestEventFireOrderAndUnsubscribe(t *testing.T) {
	ev := NewEvent()
	var got []string
	first := ev.Subscribe(func(args ...any) { got = append(got, "first") })
	ev.Subscribe(func(args ...any) {
		if len(args) == 1 {
			got = append(got, args[0].(string))
		}
	})

	ev.Fire("second")
	first()
	first()
	ev.Fire("third")

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if ev.Len() != 1 {
		t.Fatalf("expected one handler left, got %d", ev.Len())
	}
}

func TestEventUnsubscribeDuringFire(t *testing.T) {
	ev := NewEvent()
	calls := 0
	var cancel func()
	cancel = ev.Subscribe(func(...any) {
		calls++
		cancel()
	})
	ev.Fire()
	ev.Fire()
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestNilEventIsInert(t *testing.T) {
	var ev *Event
	ev.Fire()
	ev.Subscribe(func(...any) {})()
	if ev.Len() != 0 {
		t.Fatalf("expected nil event to report zero handlers")
	}
	NewEvent().Subscribe(nil)()
}
