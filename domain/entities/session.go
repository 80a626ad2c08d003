package entities

import (
	"os"
	"strconv"
)

// WorkerID identifies the worker owning a session
type WorkerID string

// CurrentWorker returns the identifier of the calling process
func CurrentWorker() WorkerID {
	return WorkerID(strconv.Itoa(os.Getpid()))
}

// SessionState tracks a worker session through its lifecycle
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateReady
	StateReconnecting
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}
