package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/vehicleplus/sums/core/logger"
	corenotify "github.com/vehicleplus/sums/core/notify"
)

// GatewaySender posts notifications to an HTTP push gateway. The gateway is
// authenticated with OAuth2 client credentials; tokens are fetched and
// refreshed transparently by the underlying client.
type GatewaySender struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// NewGatewaySender creates a gateway Sender from the config.
func NewGatewaySender(cfg GatewayConfig, log logger.Logger) *GatewaySender {
	var client *http.Client
	if cfg.TokenURL != "" {
		conf := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = conf.Client(context.Background())
	} else {
		client = &http.Client{}
	}
	client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	return &GatewaySender{url: cfg.URL, client: client, log: log}
}

// Send posts the notification request. Non-2xx responses are errors; the
// caller logs and moves on.
func (s *GatewaySender) Send(ctx context.Context, n corenotify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway status %d", resp.StatusCode)
	}
	return nil
}

// Close implements notify.Sender.
func (s *GatewaySender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
