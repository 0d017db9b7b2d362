package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRunCmd_FailOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cmd := newRunCmd()
	cmd.SetArgs([]string{"--target", srv.URL, "--requests", "3", "--concurrency", "1", "--fail-on-error"})
	cmd.SetContext(context.Background())

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "3 of 3 requests failed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
}

func TestRunCmd_RejectsUnknownFormat(t *testing.T) {
	cmd := newRunCmd()
	cmd.SetArgs([]string{"--format", "yaml"})
	cmd.SetContext(context.Background())

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRunCmd_Succeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cmd := newRunCmd()
	cmd.SetArgs([]string{"--target", srv.URL, "--path", "/api/data", "-n", "5", "--format", "json"})
	cmd.SetContext(context.Background())

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
