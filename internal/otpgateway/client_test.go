// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package otpgateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayStub records the last form the client posted and replies with a
// fixed status code and body.
type gatewayStub struct {
	statusCode int
	body       string

	lastForm   map[string]string
	lastAuth   string
	lastAccept string
}

func (g *gatewayStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		g.lastForm = make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			g.lastForm[key] = r.PostForm.Get(key)
		}
		g.lastAuth = r.Header.Get("Authorization")
		g.lastAccept = r.Header.Get("Accept")
		w.WriteHeader(g.statusCode)
		_, _ = w.Write([]byte(g.body))
	}
}

func newStubClient(t *testing.T, stub *gatewayStub, authHeader string) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, authHeader)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint URL is required")

	_, err = NewClient("   ", "")
	require.Error(t, err, "whitespace-only endpoint should be rejected")
}

func TestChannel_Valid(t *testing.T) {
	assert.True(t, ChannelWhatsApp.Valid())
	assert.True(t, ChannelEmail.Valid())
	assert.False(t, Channel("sms").Valid())
	assert.False(t, Channel("").Valid())
}

func TestDispatch_SendsGenerateForm(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "Bearer gw-token")

	err := client.Dispatch(context.Background(), ChannelWhatsApp, "15551234567")
	require.NoError(t, err)

	assert.Equal(t, "yes", stub.lastForm["GenerateOTP"])
	assert.Equal(t, "whatsapp", stub.lastForm["type"])
	assert.Equal(t, "15551234567", stub.lastForm["email_mobile"])
	assert.Equal(t, "Bearer gw-token", stub.lastAuth)
	assert.Equal(t, "application/json", stub.lastAccept)
}

func TestDispatch_Validation(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	err := client.Dispatch(context.Background(), Channel("sms"), "15551234567")
	require.Error(t, err)
	assert.False(t, IsGatewayError(err), "invalid channel is a local validation failure")

	err = client.Dispatch(context.Background(), ChannelEmail, "")
	require.Error(t, err)
	assert.False(t, IsGatewayError(err), "empty identifier is a local validation failure")

	assert.Nil(t, stub.lastForm, "nothing should reach the gateway")
}

func TestDispatch_NonSuccessStatus(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"failure"}`}
	client := newStubClient(t, stub, "")

	err := client.Dispatch(context.Background(), ChannelEmail, "player@example.com")
	require.Error(t, err)
	assert.True(t, IsGatewayError(err))
}

func TestVerifyCode_SendsVerificationForm(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	ok, err := client.VerifyCode(context.Background(), "player@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	// The misspelled field name is the gateway's wire contract.
	assert.Equal(t, "yes", stub.lastForm["login_verfication"])
	assert.Equal(t, "player@example.com", stub.lastForm["email_mobile"])
	assert.Equal(t, "123456", stub.lastForm["otp"])
	_, hasPassword := stub.lastForm["password"]
	assert.True(t, hasPassword, "password field must be present even when empty")
}

func TestVerifyCode_StatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr bool
	}{
		{
			name: "success",
			body: `{"status":"success"}`,
			want: true,
		},
		{
			name: "success is case-insensitive",
			body: `{"status":"SUCCESS"}`,
			want: true,
		},
		{
			name: "success with padding",
			body: `{"status":" Success "}`,
			want: true,
		},
		{
			name: "definitive rejection",
			body: `{"status":"failure"}`,
			want: false,
		},
		{
			name: "empty status",
			body: `{"status":""}`,
			want: false,
		},
		{
			name:    "malformed body",
			body:    `<html>gateway error</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &gatewayStub{statusCode: http.StatusOK, body: tt.body}
			client := newStubClient(t, stub, "")

			ok, err := client.VerifyCode(context.Background(), "15551234567", "123456")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsGatewayError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifyCode_Validation(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	_, err := client.VerifyCode(context.Background(), "", "123456")
	require.Error(t, err)

	_, err = client.VerifyCode(context.Background(), "player@example.com", "")
	require.Error(t, err)

	assert.Nil(t, stub.lastForm, "nothing should reach the gateway")
}

func TestPost_HTTPErrorStatus(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusBadGateway, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	_, err := client.VerifyCode(context.Background(), "15551234567", "123456")
	require.Error(t, err)
	assert.True(t, IsGatewayError(err))
	assert.Contains(t, err.Error(), "502")
}

func TestPost_UnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	otpErr := client.Dispatch(context.Background(), ChannelWhatsApp, "15551234567")
	require.Error(t, otpErr)
	assert.True(t, IsGatewayError(otpErr))
}

func TestPost_ContextCancellation(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Dispatch(ctx, ChannelWhatsApp, "15551234567")
	require.Error(t, err)
	assert.True(t, IsGatewayError(err))
	assert.True(t, errors.Is(err, context.Canceled), "cancellation should surface through the wrap")
}

func TestNoAuthHeaderWhenUnconfigured(t *testing.T) {
	stub := &gatewayStub{statusCode: http.StatusOK, body: `{"status":"success"}`}
	client := newStubClient(t, stub, "")

	require.NoError(t, client.Dispatch(context.Background(), ChannelEmail, "player@example.com"))
	assert.Empty(t, stub.lastAuth, "no Authorization header should be sent when unconfigured")
}

func TestIsGatewayError(t *testing.T) {
	assert.True(t, IsGatewayError(GatewayError("dispatch", errors.New("boom"))))
	assert.False(t, IsGatewayError(errors.New("plain error")))
	assert.False(t, IsGatewayError(nil))
}
