package protocol

import (
	"time"
)

// ChainStatus is the application status of a chain at its tip.
type ChainStatus struct {
	Height    Height
	Timestamp time.Time
}

// HealthState is the outcome of an adapter health check.
type HealthState int

const (
	Healthy HealthState = iota
	Unhealthy
)

func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "Healthy"
	case Unhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// HealthCheck reports whether an adapter can serve requests, and why not.
type HealthCheck struct {
	State  HealthState
	Reason error
}

// EventBatch is what a monitor delivers to subscribers: all events found in
// one block, in log order.
type EventBatch struct {
	ChainID string
	Height  Height
	Events  []IBCEventWithHeight
}
