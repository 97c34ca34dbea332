package vssapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/vssflow/internal/models"
)

func quietClient(url string, opts ...Option) *Client {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(url, opts...)
}

func envelope(t *testing.T, w http.ResponseWriter, status int, msg string, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": msg, "data": data})
}

func TestListScriptsHeaders(t *testing.T) {
	var gotAuth, gotType, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		envelope(t, w, http.StatusOK, "ok", []models.Script{{ID: "s1", Name: "line check", Content: json.RawMessage(`[]`)}})
	}))
	defer srv.Close()

	c := quietClient(srv.URL+"/api/", WithToken("tok"))
	scripts, err := c.ListScripts(context.Background())
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "s1" {
		t.Errorf("scripts = %+v", scripts)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotPath != "/api/scripts" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestNoTokenNoHeader(t *testing.T) {
	var had bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, had = r.Header["Authorization"]
		envelope(t, w, http.StatusOK, "", nil)
	}))
	defer srv.Close()

	c := quietClient(srv.URL)
	scripts, err := c.ListScripts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if had {
		t.Error("Authorization header sent without a token")
	}
	if scripts == nil || len(scripts) != 0 {
		t.Errorf("scripts = %#v, want empty slice", scripts)
	}
}

func TestErrorMessageFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope(t, w, http.StatusBadRequest, "name is required", nil)
	}))
	defer srv.Close()

	_, err := quietClient(srv.URL).SaveScript(context.Background(), models.Script{})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusBadRequest || err.Error() != "name is required" {
		t.Errorf("err = %v (status %d)", err, apiErr.Status)
	}
}

func TestErrorFallbackStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := quietClient(srv.URL).RunScript(context.Background(), "s1")
	if err == nil || err.Error() != "HTTP 502" {
		t.Errorf("err = %v, want HTTP 502", err)
	}
	if IsTransport(err) {
		t.Error("HTTP error classified as transport failure")
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := quietClient(url).ListScripts(context.Background())
	if !IsTransport(err) {
		t.Errorf("err = %v, want transport error", err)
	}
}

func TestSaveAndRun(t *testing.T) {
	var saved models.Script
	var runPath, runMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scripts":
			_ = json.NewDecoder(r.Body).Decode(&saved)
			envelope(t, w, http.StatusOK, "saved", saved)
		default:
			runPath, runMethod = r.URL.Path, r.Method
			envelope(t, w, http.StatusOK, "started", nil)
		}
	}))
	defer srv.Close()

	c := quietClient(srv.URL)
	in := models.Script{ID: "s 1", Name: "demo", Content: json.RawMessage(`[{"type":"node"}]`)}
	out, err := c.SaveScript(context.Background(), in)
	if err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if out.ID != "s 1" || string(saved.Content) != `[{"type":"node"}]` {
		t.Errorf("out = %+v, saved = %+v", out, saved)
	}
	if err := c.RunScript(context.Background(), "s 1"); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if runMethod != http.MethodPost || runPath != "/scripts/run/s 1" {
		t.Errorf("run = %s %s", runMethod, runPath)
	}
}
