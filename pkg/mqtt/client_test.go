package mqtt

import "testing"

func TestUsesTLS(t *testing.T) {
	tests := map[string]bool{
		"tcp://broker:1883":     false,
		"ssl://broker:8883":     true,
		"mqtts://broker:8883":   true,
		"wss://broker/mqtt":     true,
		"ws://broker:9001/mqtt": false,
	}
	for broker, want := range tests {
		if got := usesTLS(broker); got != want {
			t.Errorf("usesTLS(%q) = %v, want %v", broker, got, want)
		}
	}
}

func TestNewClientDoesNotConnect(t *testing.T) {
	c := NewClient(&Config{Broker: "tcp://127.0.0.1:1", ClientID: "test"})
	if c.IsConnected() {
		t.Fatal("client should not connect before Connect")
	}
	if len(c.subs) != 0 {
		t.Fatalf("subscriptions = %d, want 0", len(c.subs))
	}
}
