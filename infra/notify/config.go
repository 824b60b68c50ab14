package notify

import "fmt"

// Config selects and configures the push notification backend.
type Config struct {
	// Backend is "mqtt", "gateway" or "none".
	Backend string        `json:"backend"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Gateway GatewayConfig `json:"gateway"`
}

// MQTTConfig defines the connection parameters for the Paho MQTT sender.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	UseTLS      bool   `json:"use_tls"`
	ClientCert  string `json:"client_cert"`
	ClientKey   string `json:"client_key"`
	CABundle    string `json:"ca_bundle"`
}

// GatewayConfig defines the HTTP push gateway endpoint and its OAuth2 client
// credentials.
type GatewayConfig struct {
	URL            string `json:"url"`
	TokenURL       string `json:"token_url"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "sums/notify"
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 5
	}
}

// Validate checks mandatory fields for the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker is required")
		}
		return nil
	case "gateway":
		if c.Gateway.URL == "" {
			return fmt.Errorf("gateway url is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown notify backend %q", c.Backend)
	}
}
