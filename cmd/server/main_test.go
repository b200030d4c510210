package main

import (
	"errors"
	"testing"
	"time"
)

func TestServeUntilFatalOnBuildFailure(t *testing.T) {
	buildErr := make(chan error, 1)
	buildErr <- errors.New("no documents found")

	stopped := make(chan struct{})
	serving := make(chan struct{})

	err := serveUntil(func() error {
		<-serving
		return nil
	}, buildErr, func() {
		close(stopped)
		close(serving)
	})

	if err == nil || err.Error() != "no documents found" {
		t.Errorf("serveUntil() error = %v, want the build error", err)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("server was not stopped after the build failure")
	}
}

func TestServeUntilReturnsServerError(t *testing.T) {
	buildErr := make(chan error, 1)

	err := serveUntil(func() error {
		return errors.New("listen failed")
	}, buildErr, func() {
		t.Error("stop called without a build failure")
	})

	if err == nil || err.Error() != "listen failed" {
		t.Errorf("serveUntil() error = %v, want the serve error", err)
	}
}
