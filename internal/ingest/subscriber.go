// FilePath: internal/ingest/subscriber.go
package ingest

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/config"
)

// Subscriber is the always-on MQTT side of the pipeline: it subscribes to
// the telemetry topic and feeds every publish into the worker pool.
// Publishers are unauthenticated at the transport level; everything they
// send is treated as untrusted input by the pipeline.
type Subscriber struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	pipeline *Pipeline
}

func NewSubscriber(cfg config.MQTTConfig, pipeline *Pipeline) *Subscriber {
	s := &Subscriber{cfg: cfg, pipeline: pipeline}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(fmt.Sprintf("%s-%d", cfg.ClientID, time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts = opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.OnConnect = s.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		nuts.L.Warnf("[Ingest] MQTT connection lost: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker. Subscription happens in the OnConnect
// handler so it is re-established after every reconnect.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.BrokerURL, err)
	}
	return nil
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	nuts.L.Infof("[Ingest] Connected to MQTT broker %s", s.cfg.BrokerURL)
	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		s.pipeline.Enqueue(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		nuts.L.Errorf("[Ingest] Failed to subscribe to %s: %v", s.cfg.Topic, err)
		return
	}
	nuts.L.Infof("[Ingest] Subscribed to %s", s.cfg.Topic)
}

// Stop disconnects from the broker, allowing in-flight handlers to
// finish.
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}
