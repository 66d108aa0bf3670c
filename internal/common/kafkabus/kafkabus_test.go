package kafkabus

import (
	"testing"

	"restaurant-pos/internal/common/config"
)

func TestNewValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Kafka
		ok   bool
	}{
		{"no brokers", config.Kafka{Topic: "pos-events"}, false},
		{"no topic", config.Kafka{Brokers: []string{"localhost:9092"}}, false},
		{"valid", config.Kafka{Brokers: []string{"a:9092", "b:9092"}, Topic: "pos-events"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := New(tc.cfg, "group-1")
			if (err == nil) != tc.ok {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
			if b == nil {
				return
			}
			defer b.Close()
			if b.writer.Topic != tc.cfg.Topic || b.groupID != "group-1" {
				t.Errorf("bus = %+v", b)
			}
		})
	}
}
