// Package e2e exercises the gateway the way an operator deploys it: a YAML
// config on disk, locked, loaded, and served over real HTTP.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/callback"
	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/dispatch"
	"github.com/mattjoyce/hookgate/internal/events"
	"github.com/mattjoyce/hookgate/internal/server"
)

const (
	token      = "QDG6eK"
	encodedKey = "jWmYm7qr5nMoAUwZRjGtBxmz3KA1tkAj3ykkR6q2B2C"
	receiverID = "wx5823bf96d3bd56c7"

	challengeSig   = "5c45ff5e21c57e6ad56bac8758b79b1d9ac89fd3"
	challengeTS    = "1409659589"
	challengeNonce = "263014780"
	challengeEcho  = "P9nAzCzyDtyTWESHep1vC5X9xho/qYX3Zpb4yKa9SKld1DsH3Iyt3tP3zNdtp+4RPcs8TgAE7OaBO+FZXvnaqQ=="
	challengeWant  = "1616140317555161061"

	eventCipher  = "sKqRbbiSUnDhFHOvPjtUMRTD4IRphHJliFYPTHPc0CnmYGi7pSuj+/7A1gFQf49rdyrYEU6VtchNvPw7bxK3xMRv2JGvB6wlSLmTGjHHiOCm9xch8yqIHVN9irghgOPWihpjjBgoviRHabODWNWkFQ=="
	eventTS      = "1445827931"
	eventNonce   = "218929408"
	eventPayload = `{"msgtype":"text","text":{"content":"status report ready"}}`
)

// deployGateway writes a config file, locks it, loads it back through
// integrity verification, and returns a running test server.
func deployGateway(t *testing.T, registry *dispatch.Registry) *httptest.Server {
	t.Helper()

	t.Setenv("E2E_CALLBACK_TOKEN", token)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
service:
  name: e2e-gw
  status_token: watch-secret
credentials:
  wecom:
    token: ${E2E_CALLBACK_TOKEN}
    encoding_aes_key: %s
    receiver_id: %s
endpoints:
  - path: /callback/wecom
    credential_ref: wecom
`, encodedKey, receiverID)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, config.Lock(path))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	srv, err := server.New(cfg, registry, events.NewHub(cfg.Service.ActivityBuffer))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestGatewayChallenge(t *testing.T) {
	ts := deployGateway(t, dispatch.NewRegistry())

	u := fmt.Sprintf("%s/callback/wecom?msg_signature=%s&timestamp=%s&nonce=%s&echostr=%s",
		ts.URL, challengeSig, challengeTS, challengeNonce, url.QueryEscape(challengeEcho))

	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, challengeWant, string(body))
}

func TestGatewayEventWithReply(t *testing.T) {
	registry := dispatch.NewRegistry()
	registry.Register("text", dispatch.HandlerFunc(func(ctx context.Context, msg dispatch.Message) ([]byte, error) {
		assert.Equal(t, "/callback/wecom", msg.Endpoint)
		assert.Equal(t, receiverID, msg.ReceiverID)
		assert.JSONEq(t, eventPayload, string(msg.Payload))
		return []byte(`{"msgtype":"text","text":{"content":"ack"}}`), nil
	}))
	ts := deployGateway(t, registry)

	sig := callback.Signature(token, eventTS, eventNonce, eventCipher)
	u := fmt.Sprintf("%s/callback/wecom?msg_signature=%s&timestamp=%s&nonce=%s",
		ts.URL, sig, eventTS, eventNonce)
	reqBody := fmt.Sprintf(`{"encrypt":%q}`, eventCipher)

	resp, err := http.Post(u, "application/json", strings.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply struct {
		Encrypt      string `json:"encrypt"`
		MsgSignature string `json:"msgsignature"`
		Timestamp    string `json:"timestamp"`
		Nonce        string `json:"nonce"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))

	// The reply must verify and decrypt with the same credential set.
	assert.True(t, callback.VerifySignature(reply.MsgSignature, token, reply.Timestamp, reply.Nonce, reply.Encrypt))

	km, err := callback.DeriveKeyMaterial(encodedKey)
	require.NoError(t, err)
	msg, err := callback.Decrypt(km, reply.Encrypt, receiverID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"msgtype":"text","text":{"content":"ack"}}`, string(msg.Payload))
}

func TestGatewayEventNoHandlerAcks(t *testing.T) {
	ts := deployGateway(t, dispatch.NewRegistry())

	sig := callback.Signature(token, eventTS, eventNonce, eventCipher)
	u := fmt.Sprintf("%s/callback/wecom?msg_signature=%s&timestamp=%s&nonce=%s",
		ts.URL, sig, eventTS, eventNonce)

	resp, err := http.Post(u, "application/json",
		strings.NewReader(fmt.Sprintf(`{"encrypt":%q}`, eventCipher)))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", string(body))
}

func TestGatewayRejectsForgedSignature(t *testing.T) {
	ts := deployGateway(t, dispatch.NewRegistry())

	u := fmt.Sprintf("%s/callback/wecom?msg_signature=%s&timestamp=%s&nonce=%s",
		ts.URL, "0000000000000000000000000000000000000000", eventTS, eventNonce)

	resp, err := http.Post(u, "application/json",
		strings.NewReader(fmt.Sprintf(`{"encrypt":%q}`, eventCipher)))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"bad request"}`, string(body))
}

func TestGatewayStatusGuard(t *testing.T) {
	ts := deployGateway(t, dispatch.NewRegistry())

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer watch-secret")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatewayRefusesTamperedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
credentials:
  wecom:
    token: %s
    encoding_aes_key: %s
endpoints:
  - path: /callback/wecom
    credential_ref: wecom
`, token, encodedKey)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, config.Lock(path))

	// Edit after locking.
	require.NoError(t, os.WriteFile(path, []byte(content+"\n# edited\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
