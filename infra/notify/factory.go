package notify

import (
	"fmt"

	"github.com/vehicleplus/sums/core/logger"
	corenotify "github.com/vehicleplus/sums/core/notify"
)

// New creates the Sender selected by cfg.Backend.
func New(cfg Config, log logger.Logger) (corenotify.Sender, error) {
	switch cfg.Backend {
	case "", "none":
		return corenotify.NopSender{}, nil
	case "mqtt":
		return NewMQTTSender(cfg.MQTT, log)
	case "gateway":
		return NewGatewaySender(cfg.Gateway, log), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}
