package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/protocol"
)

type fakeChain struct {
	id    protocol.ChainIdentity
	check protocol.HealthCheck
}

func (f fakeChain) Identity() protocol.ChainIdentity                 { return f.id }
func (f fakeChain) HealthCheck(context.Context) protocol.HealthCheck { return f.check }

var (
	axon = fakeChain{id: protocol.ChainIdentity{ChainID: "2022", Family: protocol.ChainFamilyAxon}}
	ckb  = fakeChain{
		id:    protocol.ChainIdentity{ChainID: "ckb-testnet", Family: protocol.ChainFamilyCkb},
		check: protocol.HealthCheck{State: protocol.Unhealthy, Reason: errors.New("connection refused")},
	}
)

func TestLivenessResponse(t *testing.T) {
	resp := NewLivenessResponse()
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"alive"}`, string(data))
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	dead := LivenessResponse{Status: ServiceLiveness("dead")}
	assert.Equal(t, http.StatusServiceUnavailable, dead.StatusCode())
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		status   ServiceStatus
		code     int
	}{
		{name: "no chains", status: Ready, code: http.StatusOK},
		{name: "all healthy", checkers: []Checker{axon}, status: Ready, code: http.StatusOK},
		{name: "one unhealthy", checkers: []Checker{axon, ckb}, status: NotReady, code: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := Check(context.Background(), tc.checkers)
			assert.Equal(t, tc.status, resp.Status)
			assert.Equal(t, tc.code, resp.StatusCode())
			assert.Len(t, resp.Chains, len(tc.checkers))
		})
	}
}

func TestNewChainHealth_CarriesReason(t *testing.T) {
	h := NewChainHealth(ckb.id, ckb.check)
	assert.Equal(t, NotReady, h.Status)
	assert.Equal(t, "ckb", h.Family)
	assert.Equal(t, "connection refused", h.Error)

	data, err := json.Marshal(NewChainHealth(axon.id, axon.check))
	require.NoError(t, err)
	assert.JSONEq(t, `{"chain_id":"2022","family":"axon","status":"ready"}`, string(data))
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, []Checker{axon, ckb}, time.Second)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chains, 2)
	assert.Equal(t, NotReady, resp.Chains[1].Status)
}
