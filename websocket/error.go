package websocket

import "fmt"

type (
	InvalidStateError struct {
		message string
		state   State
	}

	ClientAlreadyConnectedError struct {
		message string
	}

	WebSocketError struct {
		message string
		err     error
	}
)

func (e *InvalidStateError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("invalid state: socket is %s", e.state)
}

func (e *InvalidStateError) State() State {
	return e.state
}

func (e *ClientAlreadyConnectedError) Error() string {
	if e.message != "" {
		return e.message
	}
	return "client already connected to server"
}

func (e *WebSocketError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("websocket error: %s - %v", e.message, e.err)
	}
	return fmt.Sprintf("websocket error: %s", e.message)
}

func (e *WebSocketError) Unwrap() error {
	return e.err
}

func NewInvalidStateError(state State) *InvalidStateError {
	return &InvalidStateError{state: state}
}

func NewClientAlreadyConnectedError(message string) *ClientAlreadyConnectedError {
	return &ClientAlreadyConnectedError{message: message}
}

func NewWebSocketError(message string, err error) *WebSocketError {
	return &WebSocketError{message: message, err: err}
}
