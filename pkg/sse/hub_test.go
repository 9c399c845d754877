package sse

import (
	"testing"
	"time"
)

func TestHubPublishToSubscriber(t *testing.T) {
	h := NewHub()
	go h.Run()

	ch := make(chan []byte, 16)
	h.Subscribe(ch, "42")
	h.PublishTopic("42", []byte("hello"))

	select {
	case msg := <-ch:
		if string(msg) != "hello" {
			t.Errorf("got %q, want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestHubTopicIsolation(t *testing.T) {
	h := NewHub()
	go h.Run()

	ch := make(chan []byte, 16)
	h.Subscribe(ch, "1")
	h.PublishTopic("2", []byte("other topic"))
	h.PublishTopic("1", []byte("mine"))

	select {
	case msg := <-ch:
		if string(msg) != "mine" {
			t.Errorf("got %q, want mine", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	go h.Run()

	ch := make(chan []byte, 16)
	h.Subscribe(ch, "7")
	h.Unsubscribe(ch, "7")
	h.PublishTopic("7", []byte("late"))

	select {
	case msg := <-ch:
		t.Errorf("unexpected message after unsubscribe: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
