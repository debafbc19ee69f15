// Package api exposes the relay as a single serverless function handler.
package api

import (
	"context"
	"net/http"
	"sync"

	"prediction-relay/internal/bootstrap"
)

var (
	once    sync.Once
	handler http.Handler
	initErr error
)

// Handler serves one invocation. The first call loads configuration and
// builds the router; later calls reuse them for the life of the instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		app, err := bootstrap.New(context.Background(), bootstrap.Options{})
		if err != nil {
			initErr = err
			return
		}
		handler = app.Handler
	})

	if initErr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
