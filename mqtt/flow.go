package mqtt

import (
	"fmt"
	"strings"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/message"
)

const (
	MESSAGES_TOPIC  = "messages"
	PUBLISH_RETRIES = 3
)

// Publisher is the publish side of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retain bool, maxRetries int) error
}

// MessagesTopic is the topic messages for userID are published on.
func MessagesTopic(prefix, userID string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, MESSAGES_TOPIC, userID)
}

// MessagesFilter matches messages for every user.
func MessagesFilter(prefix string) string {
	return MessagesTopic(prefix, "+")
}

// UserFromTopic returns the user id encoded in a messages topic.
func UserFromTopic(prefix, topic string) (string, bool) {
	userID, ok := strings.CutPrefix(topic, fmt.Sprintf("%s/%s/", prefix, MESSAGES_TOPIC))
	if !ok || userID == "" || strings.Contains(userID, "/") {
		return "", false
	}
	return userID, true
}

// Flow pushes actions to connected browsers through the relay. It only
// needs the bus, not a socket.
type Flow struct {
	publisher Publisher
	prefix    string
	qos       byte
	logger    logger.Logger
}

func NewFlow(publisher Publisher, cfg *config.MQTTConfig, logger logger.Logger) *Flow {
	return &Flow{
		publisher: publisher,
		prefix:    cfg.TopicPrefix,
		qos:       cfg.QoS,
		logger:    logger,
	}
}

// Push sends actionType and payload to every socket of userID, or to all
// authenticated sockets when userID is "*".
func (f *Flow) Push(userID, actionType string, payload any) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	env, err := message.New(actionType, payload)
	if err != nil {
		return err
	}
	env.UserID = userID

	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	topic := MessagesTopic(f.prefix, userID)
	f.logger.Debug("Pushing %s to %s", actionType, topic)
	if err := f.publisher.Publish(topic, data, f.qos, false, PUBLISH_RETRIES); err != nil {
		return fmt.Errorf("failed to push %s to user %s: %w", actionType, userID, err)
	}
	return nil
}

// PushNotification shows a notification in the user's browser.
func (f *Flow) PushNotification(userID, note, level string) error {
	return f.Push(userID, message.SHOW_NOTIFICATION, message.NotificationPayload{
		Note: note,
		Type: level,
	})
}

// Decode parses a bus payload published by Push.
func Decode(payload []byte) (*message.Envelope, error) {
	env, err := message.Parse(payload)
	if err != nil {
		return nil, err
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("message has no user_id")
	}
	return env, nil
}
