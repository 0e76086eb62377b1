// Package health serves liveness and readiness of the relayer's chains over
// HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Flouse/forcerelay/protocol"
)

type ServiceStatus string

const (
	Ready    ServiceStatus = "ready"
	NotReady ServiceStatus = "not_ready"
)

type ServiceLiveness string

const (
	Alive ServiceLiveness = "alive"
)

type LivenessResponse struct {
	Status ServiceLiveness `json:"status"`
}

type ReadinessResponse struct {
	Status ServiceStatus  `json:"status"`
	Chains []ChainsHealth `json:"chains"`
}

type ChainsHealth struct {
	ChainID string        `json:"chain_id"`
	Family  string        `json:"family"`
	Status  ServiceStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// Checker is the part of a chain adapter readiness needs.
type Checker interface {
	Identity() protocol.ChainIdentity
	HealthCheck(ctx context.Context) protocol.HealthCheck
}

func NewLivenessResponse() LivenessResponse {
	return LivenessResponse{Status: Alive}
}

func (r *LivenessResponse) StatusCode() int {
	if r.Status == Alive {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// NewReadinessResponse is ready only when every chain is.
func NewReadinessResponse(chains []ChainsHealth) ReadinessResponse {
	status := Ready
	for _, c := range chains {
		if c.Status == NotReady {
			status = NotReady
		}
	}
	return ReadinessResponse{Status: status, Chains: chains}
}

func (r *ReadinessResponse) StatusCode() int {
	if r.Status == Ready {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func NewChainHealth(id protocol.ChainIdentity, check protocol.HealthCheck) ChainsHealth {
	h := ChainsHealth{ChainID: id.ChainID, Family: string(id.Family), Status: Ready}
	if check.State != protocol.Healthy {
		h.Status = NotReady
		if check.Reason != nil {
			h.Error = check.Reason.Error()
		}
	}
	return h
}

// Check runs the health check of every checker in order.
func Check(ctx context.Context, checkers []Checker) ReadinessResponse {
	chains := make([]ChainsHealth, 0, len(checkers))
	for _, c := range checkers {
		chains = append(chains, NewChainHealth(c.Identity(), c.HealthCheck(ctx)))
	}
	return NewReadinessResponse(chains)
}

// Register mounts /health/live and /health/ready on mux. Each readiness
// request checks every chain within timeout.
func Register(mux *http.ServeMux, checkers []Checker, timeout time.Duration) {
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		resp := NewLivenessResponse()
		writeJSON(w, resp.StatusCode(), resp)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		resp := Check(ctx, checkers)
		writeJSON(w, resp.StatusCode(), resp)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
