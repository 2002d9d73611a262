package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/cesium-ml/baselayer/logger"
)

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Store)

func WithScheduler(s Scheduler) Option {
	return func(store *Store) {
		store.schedule = s
	}
}

// Store is the single owner of the notification list. Construct one per
// client with NewStore and pass it to the components that feed it.
type Store struct {
	mu          sync.Mutex
	publishMu   sync.Mutex
	state       State
	timers      map[int64]Timer
	schedule    Scheduler
	subscribers []func([]Notification)
	logger      logger.Logger
}

func NewStore(logger logger.Logger, opts ...Option) *Store {
	s := &Store{
		timers:   make(map[int64]Timer),
		schedule: afterFunc,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Show appends a notification that expires after duration and returns its
// id. Empty level and tag default to info and "default".
func (s *Store) Show(text string, level Level, duration time.Duration, tag string) int64 {
	return s.show(Notification{Text: text, Level: level, Duration: duration, Tag: tag})
}

// ShowPersistent appends a notification that stays until hidden.
func (s *Store) ShowPersistent(text string, level Level, tag string) int64 {
	return s.show(Notification{Text: text, Level: level, Tag: tag, Persistent: true})
}

func (s *Store) show(n Notification) int64 {
	s.mu.Lock()
	s.state = Reduce(s.state, Action{Type: ActionShow, Payload: n})
	shown := s.state.Notifications[len(s.state.Notifications)-1]
	if !shown.Persistent {
		id := shown.ID
		s.timers[id] = s.schedule(shown.Duration, func() {
			s.expire(id)
		})
	}
	s.mu.Unlock()

	if shown.Level == LevelError {
		s.logger.Error("Notification: %s", shown.Text)
	}

	s.publish()
	return shown.ID
}

func (s *Store) expire(id int64) {
	s.mu.Lock()
	delete(s.timers, id)
	before := len(s.state.Notifications)
	s.state = Reduce(s.state, Action{Type: ActionHide, Payload: id})
	changed := len(s.state.Notifications) != before
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// Hide removes the notification with id. Unknown ids are ignored.
func (s *Store) Hide(id int64) {
	s.mu.Lock()
	before := len(s.state.Notifications)
	s.state = Reduce(s.state, Action{Type: ActionHide, Payload: id})
	s.stopTimer(id)
	changed := len(s.state.Notifications) != before
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// HideByTag removes every notification carrying tag.
func (s *Store) HideByTag(tag string) {
	s.mu.Lock()
	removed := make([]int64, 0)
	for _, n := range s.state.Notifications {
		if n.Tag == tag {
			removed = append(removed, n.ID)
		}
	}
	s.state = Reduce(s.state, Action{Type: ActionHideByTag, Payload: tag})
	for _, id := range removed {
		s.stopTimer(id)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.publish()
	}
}

// ReplaceByTag hides everything under tag and shows a persistent
// notification in its place.
func (s *Store) ReplaceByTag(text string, level Level, tag string) int64 {
	s.HideByTag(tag)
	return s.ShowPersistent(text, level, tag)
}

func (s *Store) stopTimer(id int64) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Dispatch applies an action by type. It is the dispatch accessor handed to
// message handlers.
func (s *Store) Dispatch(actionType string, payload any) error {
	switch actionType {
	case ActionShow:
		n, ok := payload.(Notification)
		if !ok {
			return fmt.Errorf("notify: %s expects a Notification, got %T", actionType, payload)
		}
		if n.Persistent {
			s.ShowPersistent(n.Text, n.Level, n.Tag)
		} else {
			s.Show(n.Text, n.Level, n.Duration, n.Tag)
		}
	case ActionHide:
		id, ok := payload.(int64)
		if !ok {
			return fmt.Errorf("notify: %s expects an int64 id, got %T", actionType, payload)
		}
		s.Hide(id)
	case ActionHideByTag:
		tag, ok := payload.(string)
		if !ok {
			return fmt.Errorf("notify: %s expects a string tag, got %T", actionType, payload)
		}
		s.HideByTag(tag)
	default:
		return fmt.Errorf("notify: unknown action %q", actionType)
	}
	return nil
}

// GetState is the state accessor handed to message handlers.
func (s *Store) GetState() any {
	return s.State()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Notifications: s.snapshot(), LastID: s.state.LastID}
}

// List returns the notifications in insertion order.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers fn to receive the full list after every change.
// Deliveries are serialised and each one carries the list as it is at
// delivery time, so the last list a subscriber sees is the current one. fn
// must not call back into the store.
func (s *Store) Subscribe(fn func([]Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) snapshot() []Notification {
	list := make([]Notification, len(s.state.Notifications))
	copy(list, s.state.Notifications)
	return list
}

func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	subscribers := make([]func([]Notification), len(s.subscribers))
	copy(subscribers, s.subscribers)
	list := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(list)
	}
}
