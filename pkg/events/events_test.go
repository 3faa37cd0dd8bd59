package events

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/request"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker()
	c1, stop1 := b.Subscribe(4)
	c2, stop2 := b.Subscribe(4)
	defer stop2()

	b.EnvironmentUpdated(EnvironmentUpdated{Environment: env.Vars{"a": "1"}, CollectionID: "c"})
	e1, e2 := <-c1, <-c2
	if e1.Type != TypeEnvironmentUpdated {
		t.Fatalf("type %q", e1.Type)
	}
	if !reflect.DeepEqual(e1, e2) {
		t.Fatalf("subscribers saw different events: %#v %#v", e1, e2)
	}

	stop1()
	stop1()
	if _, open := <-c1; open {
		t.Fatalf("channel still open after unsubscribe")
	}
	if n := b.Subscribers(); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}

	b.RequestSent(RequestSent{TokenID: "t"})
	ev := <-c2
	if ev.Type != TypeRequestSent || ev.Payload.(RequestSent).TokenID != "t" {
		t.Fatalf("event %#v", ev)
	}
}

func TestBroker_FullBufferDrops(t *testing.T) {
	b := NewBroker()
	ch, stop := b.Subscribe(1)
	defer stop()
	b.Publish(Event{Type: "x"})
	b.Publish(Event{Type: "y"})
	if ev := <-ch; ev.Type != "x" {
		t.Fatalf("first event %q", ev.Type)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	ch, stop := b.Subscribe(1)
	b.Close()
	if _, open := <-ch; open {
		t.Fatalf("channel open after Close")
	}
	stop()

	late, _ := b.Subscribe(1)
	if _, open := <-late; open {
		t.Fatalf("late subscription should be closed")
	}
}

func TestMultiAndRecorder(t *testing.T) {
	r1, r2 := &Recorder{}, &Recorder{}
	n := Multi{r1, Nop{}, r2}
	n.EnvironmentUpdated(EnvironmentUpdated{})
	n.RequestSent(RequestSent{})
	want := []string{TypeEnvironmentUpdated, TypeRequestSent}
	if !reflect.DeepEqual(r1.Types(), want) || !reflect.DeepEqual(r2.Types(), want) {
		t.Fatalf("types %v %v", r1.Types(), r2.Types())
	}
}

func TestRequestSent_JSONShape(t *testing.T) {
	ev := RequestSent{
		Request:      request.Snapshot{URL: "https://x/42", Method: "GET", Headers: map[string]string{"a": "b"}},
		CollectionID: "col",
		ItemID:       "item",
		TokenID:      "tok",
	}
	b, err := json.Marshal(Event{Type: TypeRequestSent, Payload: ev})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload := got["payload"].(map[string]any)
	if payload["collectionUid"] != "col" || payload["itemUid"] != "item" || payload["cancelTokenUid"] != "tok" {
		t.Fatalf("payload %v", payload)
	}
	if url := payload["requestSent"].(map[string]any)["url"]; url != "https://x/42" {
		t.Fatalf("url %v", url)
	}
}
