package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	var def Topics
	if got := def.Status(); got != "aquamon/status" {
		t.Errorf("Status() = %q", got)
	}
	if got := def.Readings(); got != "aquamon/readings" {
		t.Errorf("Readings() = %q", got)
	}

	custom := Topics{Prefix: "tank1"}
	if got := custom.Readings(); got != "tank1/readings" {
		t.Errorf("custom Readings() = %q", got)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var online map[string]string
	if err := json.Unmarshal([]byte(buildStatusPayload("aquamon-collector", "online", "")), &online); err != nil {
		t.Fatalf("online payload not valid JSON: %v", err)
	}
	if online["status"] != "online" || online["client_id"] != "aquamon-collector" {
		t.Errorf("online payload = %v", online)
	}
	if _, ok := online["reason"]; ok {
		t.Error("online payload must not carry a reason")
	}

	var offline map[string]string
	if err := json.Unmarshal([]byte(buildStatusPayload("c", "offline", "graceful_shutdown")), &offline); err != nil {
		t.Fatalf("offline payload not valid JSON: %v", err)
	}
	if offline["reason"] != "graceful_shutdown" {
		t.Errorf("offline payload = %v", offline)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "aquamon-collector",
		},
		Auth:      config.MQTTAuthConfig{Username: "aqua", Password: "secret"},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
	}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].Scheme != "tcp" {
		t.Fatalf("servers = %v", opts.Servers)
	}
	if !strings.Contains(opts.Servers[0].Host, "broker.local:1883") {
		t.Errorf("broker host = %q", opts.Servers[0].Host)
	}
	if opts.ClientID != "aquamon-collector" || opts.Username != "aqua" {
		t.Errorf("identity not applied: %q / %q", opts.ClientID, opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect must be enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "c"},
	}

	opts := buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.MQTTConfig{Enabled: false})
	if err != ErrDisabled {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}
