package common

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestResponseWriter_WriteHeader_Once(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.WriteHeader(http.StatusServiceUnavailable)
	rw.WriteHeader(http.StatusInternalServerError)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	if rw.Status() != http.StatusServiceUnavailable {
		t.Errorf("expected recorded status %d, got %d", http.StatusServiceUnavailable, rw.Status())
	}
}

func TestResponseWriter_Write_ImplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	if rw.HeaderWritten() {
		t.Error("expected HeaderWritten to be false initially")
	}

	if _, err := rw.Write([]byte("test")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !rw.HeaderWritten() {
		t.Error("expected HeaderWritten after Write")
	}
	if rw.Status() != http.StatusOK {
		t.Errorf("expected status 200, got %d", rw.Status())
	}
	if rw.BytesWritten() != 4 {
		t.Errorf("expected 4 bytes written, got %d", rw.BytesWritten())
	}
	if w.Body.String() != "test" {
		t.Errorf("expected body 'test', got '%s'", w.Body.String())
	}
}

func TestResponseWriter_StatusDefaultsToOK(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())

	if rw.Status() != http.StatusOK {
		t.Errorf("expected 200 for a handler that wrote nothing, got %d", rw.Status())
	}
}

func TestResponseWriter_Unwrap(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	if rw.Unwrap() != w {
		t.Error("expected Unwrap to return the wrapped writer")
	}

	rw.Flush()
	if !w.Flushed {
		t.Error("expected Flush to reach the recorder")
	}
}

func TestResponseWriter_ConcurrentAccess(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			rw.WriteHeader(http.StatusAccepted)
		}()
		go func() {
			defer wg.Done()
			_, _ = rw.Write([]byte("x"))
		}()
		go func() {
			defer wg.Done()
			_ = rw.HeaderWritten()
			_ = rw.Status()
		}()
	}
	wg.Wait()

	if rw.BytesWritten() != 50 {
		t.Errorf("expected 50 bytes written, got %d", rw.BytesWritten())
	}
}
