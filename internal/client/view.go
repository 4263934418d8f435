package client

import (
	"errors"
	"sync"
)

// State is the lifecycle of a form action
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is the current state of one action and the message shown with it
type Status struct {
	State   State
	Message string
}

// View tracks Loading -> Success | Error per action, the way the storefront forms do
type View struct {
	mu       sync.Mutex
	statuses map[string]Status

	// OnChange is called after every transition
	OnChange func(action string, status Status)
}

// NewView creates an empty view
func NewView() *View {
	return &View{statuses: make(map[string]Status)}
}

// Status returns the state of action
func (v *View) Status(action string) Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statuses[action]
}

func (v *View) set(action string, status Status) {
	v.mu.Lock()
	v.statuses[action] = status
	onChange := v.OnChange
	v.mu.Unlock()

	if onChange != nil {
		onChange(action, status)
	}
}

// Run marks action as loading, runs fn and records the outcome.
// The returned error is the one fn returned.
func (v *View) Run(action string, fn func() (string, error)) error {
	v.set(action, Status{State: StateLoading})

	message, err := fn()
	if err != nil {
		v.set(action, Status{State: StateError, Message: errorMessage(err)})
		return err
	}

	v.set(action, Status{State: StateSuccess, Message: message})
	return nil
}

// Clear resets action to idle, like dismissing an alert
func (v *View) Clear(action string) {
	v.set(action, Status{State: StateIdle})
}

// errorMessage returns the server message for API errors
func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
