package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: StoreMemory},
		MQTT:  MQTTConfig{QoS: 1},
		Alerts: AlertConfig{
			FluorideMax: 1.5,
			HumidityMax: 70,
			HumidityMin: 30,
		},
		Sync: SyncConfig{Interval: 10 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "memory defaults", mutate: func(*Config) {}},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Store.Driver = StorePostgres },
			wantErr: "DB_HOST",
		},
		{
			name: "postgres configured",
			mutate: func(c *Config) {
				c.Store.Driver = StorePostgres
				c.Database = DatabaseConfig{Host: "localhost", DBName: "fluoride"}
			},
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Store.Driver = StoreMongo },
			wantErr: "MONGODB_URI",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "sqlite" },
			wantErr: "unknown STORE_DRIVER",
		},
		{
			name:    "mqtt without broker",
			mutate:  func(c *Config) { c.MQTT.Enabled = true },
			wantErr: "MQTT_BROKER",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "MQTT_QOS",
		},
		{
			name:    "influx without bucket",
			mutate:  func(c *Config) { c.Influx = InfluxConfig{Enabled: true, URL: "http://influx:8086"} },
			wantErr: "INFLUX_BUCKET",
		},
		{
			name:    "inverted humidity band",
			mutate:  func(c *Config) { c.Alerts.HumidityMin = 80 },
			wantErr: "ALERT_HUMIDITY_MIN",
		},
		{
			name:    "zero sync interval",
			mutate:  func(c *Config) { c.Sync.Interval = 0 },
			wantErr: "SYNC_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "fluoride", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=fluoride sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN = %q", got)
	}
}
