package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/vehicleplus/sums/core/logger"
	corenotify "github.com/vehicleplus/sums/core/notify"
)

// MQTTSender delivers notifications by publishing them on a per-device topic
// that the mobile push bridge subscribes to.
type MQTTSender struct {
	cli    paho.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// NewMQTTSender connects to the broker and returns a Sender.
func NewMQTTSender(cfg MQTTConfig, log logger.Logger) (*MQTTSender, error) {
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := paho.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTSender{cli: c, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// Send publishes the notification to <prefix>/<device token>. The publish is
// awaited but never retried; lost notifications stay lost.
func (s *MQTTSender) Send(ctx context.Context, n corenotify.Notification) error {
	msg := struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Body  string `json:"body"`
		Sent  int64  `json:"sent"`
	}{
		ID:    uuid.NewString(),
		Title: n.Title,
		Body:  n.Body,
		Sent:  time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s", s.prefix, n.Token)
	token := s.cli.Publish(topic, s.qos, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.log.Debugf("sent notification %s to %s", msg.ID, topic)
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSender) Close() error {
	s.cli.Disconnect(250)
	return nil
}

func newClientOptions(cfg MQTTConfig) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.loadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (c MQTTConfig) loadTLSConfig() (*tls.Config, error) {
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
