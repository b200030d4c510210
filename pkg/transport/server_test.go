package transport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(http.NotFoundHandler())

	if s.httpServer.Addr != ":8000" {
		t.Errorf("Addr = %q, want :8000", s.httpServer.Addr)
	}
	if s.httpServer.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", s.httpServer.ReadTimeout)
	}
	if s.httpServer.WriteTimeout != 120*time.Second {
		t.Errorf("WriteTimeout = %v, want 120s", s.httpServer.WriteTimeout)
	}
	if s.config.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", s.config.ShutdownTimeout)
	}
}

func TestNewServerOptions(t *testing.T) {
	s := NewServer(http.NotFoundHandler(),
		WithAddr("127.0.0.1:9999"),
		WithReadTimeout(5*time.Second),
		WithWriteTimeout(7*time.Second),
		WithShutdownTimeout(time.Second),
	)

	if s.httpServer.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want 127.0.0.1:9999", s.httpServer.Addr)
	}
	if s.httpServer.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", s.httpServer.ReadTimeout)
	}
	if s.httpServer.WriteTimeout != 7*time.Second {
		t.Errorf("WriteTimeout = %v, want 7s", s.httpServer.WriteTimeout)
	}
	if s.config.ShutdownTimeout != time.Second {
		t.Errorf("ShutdownTimeout = %v, want 1s", s.config.ShutdownTimeout)
	}
}
