package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/improvdb/improvdb-api/internal/config"
	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		JWTExpiry:       time.Hour,
		MeiliSearchHost: "http://127.0.0.1:7700",
		RateLimitCount:  100,
		RateLimitWindow: time.Minute,
	}
	return NewServer(testutil.NewTestDB(t), nil, cfg)
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Test Teacher",
		"email":    email,
		"password": "secret-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    email,
		"password": "secret-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return resp.Token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
}

func TestResourceRoutesEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice@example.com")

	// Writes require a token.
	rec := doJSON(t, srv, http.MethodPost, "/api/resources", "", gin.H{
		"title":       "Freeze Tag",
		"description": "Players freeze and swap in.",
		"type":        entity.ResourceTypeExercise,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create returned %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/resources", token, gin.H{
		"title":       "Freeze Tag",
		"description": "Players freeze and swap in.",
		"type":        entity.ResourceTypeExercise,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}

	// Drafts are invisible to the public.
	rec = doJSON(t, srv, http.MethodGet, "/api/resources/freeze-tag", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous draft read returned %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/resources/freeze-tag", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner draft read returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/resources", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public listing returned %d", rec.Code)
	}
	var listing struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Data) != 0 {
		t.Fatalf("drafts leaked into the public listing: %s", rec.Body.String())
	}

	// Admin-only surface is closed to regular users.
	rec = doJSON(t, srv, http.MethodGet, "/api/admin/resources/pending", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin pending queue returned %d", rec.Code)
	}
}

func TestValidationErrorsAreBadRequests(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "bob@example.com")

	for i, body := range []gin.H{
		{"description": "missing title", "type": entity.ResourceTypeExercise},
		{"title": "No Type", "description": "d"},
		{"title": "Bad Type", "description": "d", "type": "OPERA"},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/resources", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/lesson-plans/%s", "not-a-uuid"), "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed plan id: expected 400, got %d", rec.Code)
	}
}
