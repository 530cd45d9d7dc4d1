package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, sessionHeader bool, message string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get-captcha":
			if sessionHeader {
				w.Header().Set("X-Session-ID", "abc")
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("img"))
		case "/fetch-timetable":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"success":false,"message":%q,"code":"X"}`, message)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCompareTargetFieldsOnly(t *testing.T) {
	goBase := newBackend(t, true, "Invalid or expired session")
	legacyBase := newBackend(t, true, "Invalid or expired session")

	comp := compareTarget(resty.New(), goBase, legacyBase, target{
		Method: "POST",
		Path:   "/fetch-timetable",
		Form:   map[string]string{"session_id": "x"},
		Fields: []string{"success", "message"},
	})
	require.NoError(t, comp.Error)
	assert.False(t, comp.diff())
	assert.Equal(t, http.StatusBadRequest, comp.GoStatus)
}

func TestCompareTargetReportsDifferences(t *testing.T) {
	goBase := newBackend(t, false, "Invalid or expired session")
	legacyBase := newBackend(t, true, "Invalid session")

	captcha := compareTarget(resty.New(), goBase, legacyBase, target{Path: "get-captcha", Binary: true, Headers: []string{"X-Session-ID"}})
	require.NoError(t, captcha.Error)
	assert.True(t, captcha.diff())
	assert.Contains(t, captcha.Notes, "header X-Session-ID: go=false legacy=true")

	fetch := compareTarget(resty.New(), goBase, legacyBase, target{Method: "POST", Path: "/fetch-timetable", Fields: []string{"message"}})
	require.NoError(t, fetch.Error)
	assert.True(t, fetch.StatusMatch)
	assert.False(t, fetch.BodyMatch)
}

func TestBodiesEqualWholeBody(t *testing.T) {
	assert.True(t, bodiesEqual([]byte(`{"a":1,"b":[1,2]}`), []byte(`{"b":[1,2],"a":1}`), nil))
	assert.False(t, bodiesEqual([]byte(`{"a":1}`), []byte(`{"a":2}`), nil))
	assert.True(t, bodiesEqual([]byte("ok\n"), []byte("ok"), nil))
}
