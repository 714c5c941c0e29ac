package netx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostForm_SendsFormAndRequestID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		assert.NoError(t, err, "request id should be a uuid")
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := NewClient(Options{HTTPClient: ts.Client()})
	resp, err := c.PostForm(context.Background(), ts.URL, url.Values{"grant_type": {"refresh_token"}})

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestPostJSON_BearerAndBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		var got map[string]string
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, "abc", got["uuid"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := NewClient(Options{HTTPClient: ts.Client()})
	resp, err := c.PostJSON(context.Background(), ts.URL, "tkn", map[string]string{"uuid": "abc"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestDo_RetriesTransientStatusThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(Options{HTTPClient: ts.Client(), MaxRetries: 3, Backoff: time.Millisecond})
	resp, err := c.GetJSON(context.Background(), ts.URL, "")

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDo_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer ts.Close()

	c := NewClient(Options{HTTPClient: ts.Client(), MaxRetries: 1, Backoff: time.Millisecond})
	resp, err := c.GetJSON(context.Background(), ts.URL, "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "maintenance", ProviderMessage(resp))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(Options{HTTPClient: ts.Client(), MaxRetries: 5, Backoff: time.Millisecond})
	resp, err := c.GetJSON(context.Background(), ts.URL, "")

	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDo_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := NewClient(Options{MaxRetries: 1, Backoff: time.Millisecond})
	_, err := c.GetJSON(context.Background(), ts.URL, "")
	require.Error(t, err)
}

func TestProviderMessage(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{"description wins", &Response{Body: []byte(`{"error":"invalid_grant","error_description":"token revoked"}`)}, "token revoked"},
		{"error code only", &Response{Body: []byte(`{"error":"invalid_grant"}`)}, "invalid_grant"},
		{"errorMessage", &Response{Body: []byte(`{"errorMessage":"nope"}`)}, "nope"},
		{"non json falls back to status", &Response{Status: "502 Bad Gateway", Body: []byte(`<html>`)}, "502 Bad Gateway"},
		{"no status text", &Response{StatusCode: 418}, "status 418"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProviderMessage(tt.resp))
		})
	}
}
