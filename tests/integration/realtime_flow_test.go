package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readHome(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestRealtimeFlow_CreatePushesOwnersAnalytics(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)

	alice, _ := app.registerUser(t, "alice.ws@test.com", "password123")
	bob, _ := app.registerUser(t, "bob.ws@test.com", "password123")
	food := app.createCategory(t, alice, "Food")

	aliceConn := dialWS(t, srv, alice)
	bobConn := dialWS(t, srv, bob)
	require.Eventually(t, func() bool { return app.App.Hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	app.createText(t, alice, `{"text":"pizza","amount":12.5,"category_id":"`+food+`"}`)

	payload := readHome(t, aliceConn)
	assert.Equal(t, 12.5, payload["total_amount"])
	assert.Equal(t, map[string]interface{}{"Food": 12.5}, payload["category_analysis"])
	assert.Len(t, payload["analysis_over_time"], 1)

	// The push matches what the home endpoint serves.
	rec := app.request("GET", "/api/v1/analytics/home", "", alice)
	assert.Equal(t, payload, parseJSON(t, rec))

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's analytics")
}

func TestRealtimeFlow_UpdatesAndDeletesDoNotPush(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)

	token, _ := app.registerUser(t, "quiet@test.com", "password123")
	conn := dialWS(t, srv, token)
	require.Eventually(t, func() bool { return app.App.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	tx := app.createText(t, token, `{"text":"coffee","amount":3}`)
	readHome(t, conn)

	rec := app.request("PUT", "/api/v1/transactions/"+tx, `{"amount":4}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.request("DELETE", "/api/v1/transactions/"+tx, "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "only creates trigger a push")
}
