package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name      string `json:"name"`
		Timestamp int64  `json:"timestamp"`
	}

	tests := []struct {
		name        string
		body        string
		wantOK      bool
		wantMessage string
	}{
		{name: "valid", body: `{"name":"general","timestamp":1}`, wantOK: true},
		{name: "empty body", body: ``, wantMessage: "request body is required"},
		{name: "syntax error", body: `{"name":}`, wantMessage: "invalid JSON payload"},
		{name: "truncated", body: `{"name":"gen`, wantMessage: "invalid JSON payload"},
		{name: "wrong type", body: `{"timestamp":"soon"}`, wantMessage: `invalid value for field "timestamp"`},
		{name: "unknown field", body: `{"name":"a","owner":"b"}`, wantMessage: `unknown field "owner"`},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantMessage: "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst payload
			ok := decodeJSON(rec, req, &dst)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				return
			}

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}
