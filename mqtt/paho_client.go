package mqtt

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
)

const PUBLISH_RETRY_DELAY = 200 * time.Millisecond

// Client is the message bus connection used by the relay (subscribe) and
// by Flow (publish).
type Client interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retain bool, maxRetries int) error
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topic string) error
}

type MessageHandler func(topic string, payload []byte)

type PahoClient struct {
	brokerURL string
	clientID  string
	username  string
	password  string
	qos       byte
	client    mqtt.Client
	logger    logger.Logger

	mu          sync.RWMutex
	subscribers map[string]MessageHandler
}

func NewPahoClient(cfg *config.MQTTConfig, logger logger.Logger) *PahoClient {
	return &PahoClient{
		brokerURL:   cfg.GetMQTTBrokerURL(),
		clientID:    cfg.ClientID,
		username:    cfg.Username,
		password:    cfg.Password,
		qos:         cfg.QoS,
		logger:      logger,
		subscribers: make(map[string]MessageHandler),
	}
}

func (c *PahoClient) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID(c.clientID)

	if c.username != "" {
		opts.SetUsername(c.username)
	}

	if c.password != "" {
		opts.SetPassword(c.password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetDefaultPublishHandler(c.defaultMessageHandler)
	opts.SetPingTimeout(30 * time.Second)
	opts.SetConnectTimeout(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetConnectionLostHandler(c.connectionLostHandler)
	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetReconnectingHandler(c.reconnectingHandler)

	c.client = mqtt.NewClient(opts)

	c.logger.Info("Connecting to MQTT broker at %s", c.brokerURL)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("Successfully connected to MQTT broker")
	return nil
}

func (c *PahoClient) Disconnect() error {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("Disconnecting from MQTT broker")
		c.client.Disconnect(250)
	}
	return nil
}

func (c *PahoClient) IsConnected() bool {
	if c.client == nil {
		return false
	}
	return c.client.IsConnected()
}

// Publish sends payload, retrying up to maxRetries more times when the
// broker does not acknowledge it.
func (c *PahoClient) Publish(topic string, payload []byte, qos byte, retain bool, maxRetries int) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("Retrying publish to %s (%d/%d)", topic, attempt, maxRetries)
			time.Sleep(PUBLISH_RETRY_DELAY)
		}

		token := c.client.Publish(topic, qos, retain, payload)
		if token.Wait() && token.Error() != nil {
			err = token.Error()
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to publish message: %w", err)
}

func (c *PahoClient) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	c.mu.Lock()
	c.subscribers[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.qos, func(client mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})

	if token.Wait() && token.Error() != nil {
		c.mu.Lock()
		delete(c.subscribers, topic)
		c.mu.Unlock()
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.logger.Info("Successfully subscribed to topic: %s", topic)
	return nil
}

func (c *PahoClient) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	token := c.client.Unsubscribe(topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, token.Error())
	}

	c.mu.Lock()
	delete(c.subscribers, topic)
	c.mu.Unlock()
	c.logger.Info("Successfully unsubscribed from topic: %s", topic)
	return nil
}

func (c *PahoClient) defaultMessageHandler(client mqtt.Client, msg mqtt.Message) {
	c.logger.Debug("Received message on topic %s: %s", msg.Topic(), string(msg.Payload()))
}

func (c *PahoClient) connectionLostHandler(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection lost: %v", err)
}

func (c *PahoClient) onConnectHandler(client mqtt.Client) {
	c.logger.Info("MQTT connection established")

	c.mu.RLock()
	subscribers := make(map[string]MessageHandler, len(c.subscribers))
	for topic, handler := range c.subscribers {
		subscribers[topic] = handler
	}
	c.mu.RUnlock()

	for topic, handler := range subscribers {
		c.logger.Info("Resubscribing to topic: %s", topic)
		token := client.Subscribe(topic, c.qos, func(client mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			c.logger.Error("Failed to resubscribe to topic %s: %v", topic, token.Error())
		}
	}
}

func (c *PahoClient) reconnectingHandler(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("Attempting to reconnect to MQTT broker...")
}
