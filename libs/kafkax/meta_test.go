package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestSplitBrokers(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"kafka:9092", 1},
		{"a:9092, b:9092 ,", 2},
		{" , ", 0},
	}
	for _, tc := range cases {
		if got := SplitBrokers(tc.raw); len(got) != tc.want {
			t.Fatalf("SplitBrokers(%q): expected %d brokers, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestExtractEventMeta(t *testing.T) {
	msg := kafka.Message{
		Topic: "booking.appointment.booked.v1",
		Key:   []byte("appt-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-42")},
		},
	}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-42" {
		t.Fatalf("expected header event id, got %q", meta.EventID)
	}
	if meta.EventType != "booking.appointment.booked.v1" {
		t.Fatalf("expected topic as event type fallback, got %q", meta.EventType)
	}

	// Without headers the key and topic are the fallbacks.
	meta = ExtractEventMeta(kafka.Message{Topic: "t", Key: []byte("k")})
	if meta.EventID != "k" || meta.EventType != "t" {
		t.Fatalf("unexpected fallback meta: %+v", meta)
	}
}
