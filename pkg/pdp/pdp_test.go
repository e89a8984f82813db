package pdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlwaysAllowAllowsEverything(t *testing.T) {
	var a AlwaysAllow
	decision, err := a.Authorize(context.Background(), Request{Action: ActionClose})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}

func TestClientAuthorizeDeniesWithMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ActionClaim, req.Action)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Decision{Allow: false, Message: "insufficient role"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	decision, err := client.Authorize(context.Background(), Request{
		Action:       ActionClaim,
		ResourceType: ResourceDelegation,
		Subject:      "user1",
	})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "insufficient role", decision.Message)
}

func TestClientAuthorizeSurfacesTransportErrorOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Authorize(context.Background(), Request{Action: ActionQuery})
	require.Error(t, err)
}

func TestNewSelectsStubWhenDisabled(t *testing.T) {
	a := New(false, "", 0)
	_, ok := a.(AlwaysAllow)
	assert.True(t, ok)
}

func TestNewSelectsClientWhenEnabled(t *testing.T) {
	a := New(true, "http://localhost:9999", 5)
	_, ok := a.(*Client)
	assert.True(t, ok)
}
