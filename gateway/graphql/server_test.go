package graphql

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSAuthRequiresSession(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/ws-auth")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSAuthIssuesToken(t *testing.T) {
	f := newGatewayFixture(t)
	cookie, userID := f.register(t, "alice")

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/ws-auth", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Token, 64)

	// The token resolves back to the same user.
	principal, err := f.tokens.Resolve(t.Context(), body.Token)
	require.NoError(t, err)
	assert.True(t, principal.Authenticated)
	assert.Equal(t, userID, principal.UserID)
}

func TestWSAuthTamperedCookie(t *testing.T) {
	f := newGatewayFixture(t)
	cookie, _ := f.register(t, "alice")
	cookie.Value = cookie.Value + "tampered"

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/ws-auth", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGraphQLRejectsGet(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.ts.URL + "/graphql")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newGatewayFixture(t)
	cookie, _ := f.register(t, "alice")

	out := f.graphql(t, []*http.Cookie{cookie}, `mutation { logout { success } }`, nil)
	require.Nil(t, out["errors"])

	// Session record is gone; the old cookie no longer authenticates.
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/ws-auth", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults applied", Config{}, false},
		{"bad path", Config{Path: "graphql"}, true},
		{"bad timeout", Config{TimeoutStr: "not-a-duration"}, true},
		{"timeout too small", Config{TimeoutStr: "10ms"}, true},
		{"negative buffer", Config{SubscriptionBuffer: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, ":8080", tt.config.BindAddress)
				assert.Equal(t, "/graphql", tt.config.Path)
			}
		})
	}
}
