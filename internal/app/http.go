package app

import (
	"net/http"
	"time"

	"crewchat/pkg/logger"
)

const shutdownGrace = 10 * time.Second

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: h,
		// No global read/write timeouts: websocket connections are
		// long-lived and pace themselves with ping/pong deadlines.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (a *App) serve() error {
	tls := a.cfg.Server.TLS
	if tls.CertFile != "" && tls.KeyFile != "" {
		logger.Info("listening_tls", "addr", a.addr)
		return a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	logger.Info("listening", "addr", a.addr)
	return a.httpSrv.ListenAndServe()
}
