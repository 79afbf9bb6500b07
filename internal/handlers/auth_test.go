package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login(t *testing.T) {
	f := newFixture(t)
	router := f.apiRouter()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "json success", contentType: "application/json", body: `{"username":"alice","password":"secret"}`, wantStatus: http.StatusOK},
		{name: "form success", contentType: "application/x-www-form-urlencoded", body: url.Values{"username": {"Alice"}, "password": {"secret"}}.Encode(), wantStatus: http.StatusOK},
		{name: "missing password", contentType: "application/json", body: `{"username":"alice"}`, wantStatus: http.StatusBadRequest},
		{name: "wrong password", contentType: "application/json", body: `{"username":"alice","password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "unknown user", contentType: "application/json", body: `{"username":"mallory","password":"secret"}`, wantStatus: http.StatusUnauthorized},
		{name: "broken json", contentType: "application/json", body: `{"username":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			cookies := rec.Result().Cookies()
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, cookies)
				return
			}
			require.Len(t, cookies, 1)
			c := cookies[0]
			assert.Equal(t, testCookie, c.Name)
			assert.Len(t, c.Value, 32)
			assert.Equal(t, 60, c.MaxAge)
			assert.True(t, c.HttpOnly)
			assert.Contains(t, rec.Body.String(), "Authentication successful")
		})
	}
}

func TestAuthHandler_LoginProfileLogout(t *testing.T) {
	f := newFixture(t)
	router := f.apiRouter()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"bob","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Result().Cookies()[0]

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"bob"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	// ログアウト後は同じトークンが使えない
	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_LoginMultipartForm(t *testing.T) {
	f := newFixture(t)
	router := f.apiRouter()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("username", "alice"))
	require.NoError(t, mw.WriteField("password", "secret"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/login", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
}
