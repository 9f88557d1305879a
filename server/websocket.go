package server

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	jsonrpc2ws "github.com/sourcegraph/jsonrpc2/websocket"
	"go.uber.org/zap"

	"github.com/teranos/gitlab-ls/logger"
)

// SessionFactory creates the session for a new connection.
type SessionFactory func() *Session

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin accepts editors (no Origin header) and pages served from the
// local machine. Anything else could be a web page driving the server with
// the user's token.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// WebSocketHandler serves one session per WebSocket connection. Each
// message carries exactly one JSON-RPC object.
func WebSocketHandler(ctx context.Context, newSession SessionFactory, log *zap.SugaredLogger) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, logger.FieldError, err)
			return
		}

		session := newSession()
		log.Infow("WebSocket session started", "remote", r.RemoteAddr, logger.FieldSession, session.ID())
		NewConn(session, log).Serve(ctx, jsonrpc2ws.NewObjectStream(ws))
		log.Infow("WebSocket session ended", "remote", r.RemoteAddr, logger.FieldSession, session.ID())
	})
}
