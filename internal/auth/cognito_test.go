package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPoolID   = "us-west-1_TestPool"
	testClientID = "client-123"
)

func TestRegionFromPoolID(t *testing.T) {
	assert.Equal(t, "us-west-1", RegionFromPoolID("us-west-1_9FOe8eHZU"))
	assert.Equal(t, "eu-central-1", RegionFromPoolID("eu-central-1_abc"))
	assert.Equal(t, "", RegionFromPoolID("nopool"))
}

// cognitoCall is one decoded request to the fake identity provider
type cognitoCall struct {
	Target             string
	AuthFlow           string            `json:"AuthFlow"`
	ClientID           string            `json:"ClientId"`
	AuthParameters     map[string]string `json:"AuthParameters"`
	ChallengeName      string            `json:"ChallengeName"`
	ChallengeResponses map[string]string `json:"ChallengeResponses"`
	Session            string            `json:"Session"`
}

type cognitoReply struct {
	status int
	body   interface{}
}

type fakeCognito struct {
	t      *testing.T
	handle func(call cognitoCall) cognitoReply

	mu    sync.Mutex
	calls []cognitoCall
}

func newFakeCognito(t *testing.T, handle func(call cognitoCall) cognitoReply) (*fakeCognito, *httptest.Server) {
	t.Helper()
	f := &fakeCognito{t: t, handle: handle}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCognito) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "application/x-amz-json-1.1", r.Header.Get("Content-Type"))

	var call cognitoCall
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&call)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	call.Target = strings.TrimPrefix(r.Header.Get("X-Amz-Target"), "AWSCognitoIdentityProviderService.")

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	reply := f.handle(call)
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(reply.status)
	_ = json.NewEncoder(w).Encode(reply.body)
}

func (f *fakeCognito) targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Target+":"+c.AuthFlow+c.ChallengeName)
	}
	return out
}

func authResult(access, refresh string) cognitoReply {
	result := map[string]interface{}{
		"AccessToken": access,
		"ExpiresIn":   3600,
		"TokenType":   "Bearer",
	}
	if refresh != "" {
		result["RefreshToken"] = refresh
	}
	return cognitoReply{status: http.StatusOK, body: map[string]interface{}{"AuthenticationResult": result}}
}

func cognitoFault(code, message string) cognitoReply {
	return cognitoReply{status: http.StatusBadRequest, body: map[string]string{"__type": code, "message": message}}
}

func newTestProvider(endpoint, flow string) *CognitoProvider {
	return NewCognitoProvider(CognitoOptions{
		UserPoolID: testPoolID,
		ClientID:   testClientID,
		AuthFlow:   flow,
		Endpoint:   endpoint,
	})
}

func TestNewCognitoProvider_Defaults(t *testing.T) {
	p := NewCognitoProvider(CognitoOptions{UserPoolID: testPoolID, ClientID: testClientID})
	assert.Equal(t, AuthFlowSRP, p.authFlow)
	assert.Equal(t, testClientID, p.clientID)
}

func TestCognitoProvider_SRPAuthenticateAndRenew(t *testing.T) {
	f, srv := newFakeCognito(t, func(call cognitoCall) cognitoReply {
		switch {
		case call.Target == "InitiateAuth" && call.AuthFlow == AuthFlowSRP:
			assert.Equal(t, testClientID, call.ClientID)
			assert.Equal(t, "alice", call.AuthParameters["USERNAME"])
			assert.NotEmpty(t, call.AuthParameters["SRP_A"])
			assert.NotContains(t, call.AuthParameters, "PASSWORD")
			return cognitoReply{status: http.StatusOK, body: map[string]interface{}{
				"ChallengeName": "PASSWORD_VERIFIER",
				"ChallengeParameters": map[string]string{
					"SALT":            "a1b2c3d4e5f6",
					"SRP_B":           strings.Repeat("7f", 64),
					"SECRET_BLOCK":    base64.StdEncoding.EncodeToString([]byte("secret-block")),
					"USERNAME":        "alice-internal",
					"USER_ID_FOR_SRP": "alice-internal",
				},
			}}
		case call.Target == "RespondToAuthChallenge":
			assert.Equal(t, "PASSWORD_VERIFIER", call.ChallengeName)
			assert.Equal(t, "alice-internal", call.ChallengeResponses["USERNAME"])
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("secret-block")), call.ChallengeResponses["PASSWORD_CLAIM_SECRET_BLOCK"])
			assert.NotEmpty(t, call.ChallengeResponses["PASSWORD_CLAIM_SIGNATURE"])
			assert.NotEmpty(t, call.ChallengeResponses["TIMESTAMP"])
			return authResult("access-1", "refresh-1")
		case call.Target == "InitiateAuth" && call.AuthFlow == "REFRESH_TOKEN_AUTH":
			assert.Equal(t, "refresh-1", call.AuthParameters["REFRESH_TOKEN"])
			return authResult("access-2", "")
		}
		return cognitoFault("InvalidParameterException", "unexpected call")
	})

	p := newTestProvider(srv.URL, AuthFlowSRP)

	token, err := p.Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	token, err = p.Renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	// refresh token is kept when the renew response omits it
	token, err = p.Renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	assert.Equal(t, []string{
		"InitiateAuth:USER_SRP_AUTH",
		"RespondToAuthChallenge:PASSWORD_VERIFIER",
		"InitiateAuth:REFRESH_TOKEN_AUTH",
		"InitiateAuth:REFRESH_TOKEN_AUTH",
	}, f.targets())
}

func TestCognitoProvider_PasswordFlow(t *testing.T) {
	f, srv := newFakeCognito(t, func(call cognitoCall) cognitoReply {
		if call.AuthFlow == AuthFlowPassword {
			assert.Equal(t, "alice", call.AuthParameters["USERNAME"])
			assert.Equal(t, "s3cret", call.AuthParameters["PASSWORD"])
			return authResult("access-1", "refresh-1")
		}
		return cognitoFault("InvalidParameterException", "unexpected call")
	})

	token, err := newTestProvider(srv.URL, AuthFlowPassword).Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, []string{"InitiateAuth:USER_PASSWORD_AUTH"}, f.targets())
}

func TestCognitoProvider_RenewWithoutAuthenticate(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:0", AuthFlowSRP)
	_, err := p.Renew(context.Background())

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "renew", ae.Op)
}

func TestCognitoProvider_UnsupportedFlow(t *testing.T) {
	_, err := newTestProvider("http://127.0.0.1:0", "CUSTOM_AUTH").Authenticate(context.Background(), "u", "p")
	assert.ErrorContains(t, err, `unsupported auth flow "CUSTOM_AUTH"`)
}

func TestCognitoProvider_NotAuthorized(t *testing.T) {
	_, srv := newFakeCognito(t, func(cognitoCall) cognitoReply {
		return cognitoFault("NotAuthorizedException", "Incorrect username or password.")
	})

	_, err := newTestProvider(srv.URL, AuthFlowSRP).Authenticate(context.Background(), "u", "p")

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "authenticate", ae.Op)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Contains(t, err.Error(), "NotAuthorizedException: Incorrect username or password.")

	var notAuth *types.NotAuthorizedException
	assert.True(t, errors.As(err, &notAuth))
}

func TestCognitoProvider_ResultErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   cognitoReply
		wantMsg string
	}{
		{
			name: "challenge",
			reply: cognitoReply{status: http.StatusOK, body: map[string]interface{}{
				"ChallengeName": "NEW_PASSWORD_REQUIRED",
				"Session":       "abc",
			}},
			wantMsg: "unsupported challenge NEW_PASSWORD_REQUIRED",
		},
		{
			name:    "empty token",
			reply:   authResult("", "refresh"),
			wantMsg: "empty access token",
		},
		{
			name:    "no result",
			reply:   cognitoReply{status: http.StatusOK, body: map[string]interface{}{}},
			wantMsg: "no AuthenticationResult",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newFakeCognito(t, func(cognitoCall) cognitoReply {
				return tt.reply
			})

			_, err := newTestProvider(srv.URL, AuthFlowPassword).Authenticate(context.Background(), "u", "p")
			var ae *AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "authenticate", ae.Op)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
