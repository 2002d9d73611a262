// Package dispatch routes application actions received over the socket to
// registered handlers.
//
// A Dispatcher must be initialised with Init before Handle does anything.
// Handle on an uninitialised dispatcher logs the dropped action and returns
// ErrNotInitialized; it never panics.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cesium-ml/baselayer/logger"
)

var ErrNotInitialized = errors.New("dispatch: handle called before init")

// DispatchFunc applies a follow-up action to the application state.
type DispatchFunc func(actionType string, payload any) error

// StateFunc reads the current application state.
type StateFunc func() any

// Handler receives every action. Handlers ignore action types they do not
// care about.
type Handler func(actionType string, payload json.RawMessage, dispatch DispatchFunc, getState StateFunc) error

type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	dispatch DispatchFunc
	getState StateFunc
	logger   logger.Logger
}

func New(logger logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make([]Handler, 0),
		logger:   logger,
	}
}

func (d *Dispatcher) Init(dispatch DispatchFunc, getState StateFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatch = dispatch
	d.getState = getState
}

func (d *Dispatcher) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dispatch != nil && d.getState != nil
}

// Add appends handler. The same handler may be added more than once.
func (d *Dispatcher) Add(handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// Handle calls every handler in registration order. A failing or panicking
// handler is logged and does not stop the ones after it; the returned error
// joins all handler failures.
func (d *Dispatcher) Handle(actionType string, payload json.RawMessage) error {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	dispatch, getState := d.dispatch, d.getState
	d.mu.RUnlock()

	if dispatch == nil || getState == nil {
		d.logger.Error("Dropping action %s: dispatcher not initialized", actionType)
		return ErrNotInitialized
	}

	var errs []error
	for i, handler := range handlers {
		if err := d.call(handler, actionType, payload, dispatch, getState); err != nil {
			d.logger.Error("Handler %d failed on %s: %v", i, actionType, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) call(handler Handler, actionType string, payload json.RawMessage, dispatch DispatchFunc, getState StateFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(actionType, payload, dispatch, getState)
}
