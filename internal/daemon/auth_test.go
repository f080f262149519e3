package daemon

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mp4forge/internal/services"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "", http.StatusOK},
		{"missing header", "abc", "", http.StatusUnauthorized},
		{"wrong scheme", "abc", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "abc", "Bearer abd", http.StatusUnauthorized},
		{"valid token", "abc", "Bearer abc", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.token)(ok).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrNotFound, "", "", "gone", nil), http.StatusNotFound},
		{services.Wrap(services.ErrValidation, "queue", "validate", "", nil), http.StatusBadRequest},
		{fmt.Errorf("%w: busy", services.ErrConflict), http.StatusConflict},
		{services.Wrap(services.ErrTimeout, "processor", "stop", "", nil), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), "statusForError(%v)", tc.err)
	}
}

func TestResumeGap(t *testing.T) {
	cases := []struct {
		name        string
		first       uint64
		since       uint64
		wantFrom    uint64
		wantTo      uint64
		wantMissing bool
	}{
		{"fresh subscription", 40, 0, 0, 0, false},
		{"cursor still buffered", 40, 45, 0, 0, false},
		{"next event is first buffered", 40, 39, 0, 0, false},
		{"cursor fell out of buffer", 40, 10, 11, 39, true},
		{"empty hub", 7, 7, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to, missing := resumeGap(tc.first, tc.since)
			assert.Equal(t, tc.wantMissing, missing)
			assert.Equal(t, tc.wantFrom, from)
			assert.Equal(t, tc.wantTo, to)
		})
	}
}
