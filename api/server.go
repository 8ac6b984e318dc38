package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/marketpay-backend/pkg/config"
)

// NewServer builds the HTTP server cmd/api runs. Handler construction lives
// in api/routes; this only sets the listen address and protective timeouts.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
