package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cesium-ml/baselayer/dispatch"
	"github.com/cesium-ml/baselayer/message"
)

// MessageHandler turns server-pushed notification actions into store
// actions.
func MessageHandler() dispatch.Handler {
	return func(actionType string, payload json.RawMessage, dispatchFn dispatch.DispatchFunc, _ dispatch.StateFunc) error {
		switch actionType {
		case message.SHOW_NOTIFICATION:
			var p message.NotificationPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("invalid %s payload: %w", actionType, err)
			}
			return dispatchFn(ActionShow, Notification{
				Text:     p.Note,
				Level:    Level(p.Type),
				Duration: time.Duration(p.Duration) * time.Millisecond,
				Tag:      p.Tag,
			})

		case message.HIDE_NOTIFICATIONS_BY_TAG:
			var p message.TagPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("invalid %s payload: %w", actionType, err)
			}
			return dispatchFn(ActionHideByTag, p.Tag)
		}
		return nil
	}
}
