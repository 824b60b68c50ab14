package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	corenotify "github.com/vehicleplus/sums/core/notify"
	"github.com/vehicleplus/sums/infra/logger"
	"github.com/vehicleplus/sums/infra/notify"
)

// startMosquitto spins up a basic Mosquitto broker for tests.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// Test_E2E_NotificationDelivery drives the MQTT notification sender against a
// real broker and verifies a subscriber on the device topic receives the
// message.
func Test_E2E_NotificationDelivery(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cont, brokerURL := startMosquitto(ctx, t)
	if cont != nil {
		defer cont.Terminate(ctx) //nolint:errcheck
	}
	t.Logf("Mosquitto started at %s", brokerURL)

	const prefix = "sums/notify"
	const deviceToken = "device-token-1"

	received := make(chan []byte, 1)
	subOpts := paho.NewClientOptions().AddBroker(brokerURL).SetClientID("e2e-subscriber")
	sub := paho.NewClient(subOpts)
	if token := sub.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer sub.Disconnect(250)
	topic := fmt.Sprintf("%s/%s", prefix, deviceToken)
	if token := sub.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		received <- m.Payload()
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	sender, err := notify.NewMQTTSender(notify.MQTTConfig{
		Broker:      brokerURL,
		ClientID:    "e2e-sender",
		TopicPrefix: prefix,
		QoS:         1,
	}, logger.New("e2e"))
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	defer func() { _ = sender.Close() }()

	n := corenotify.Notification{
		Token: deviceToken,
		Title: "park-assist is now available!",
		Body:  "parks itself",
	}
	if err := sender.Send(ctx, n); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-received:
		var msg struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Body  string `json:"body"`
			Sent  int64  `json:"sent"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.ID == "" || msg.Title != n.Title || msg.Body != n.Body || msg.Sent == 0 {
			t.Fatalf("unexpected message %#v", msg)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("notification not delivered")
	}
}
