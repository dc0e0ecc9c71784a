package chat

import (
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"crewchat/pkg/auth"
	"crewchat/pkg/config"
	"crewchat/pkg/logger"
	"crewchat/pkg/ratelimit"
	"crewchat/pkg/roster"
	"crewchat/pkg/session"
	"crewchat/pkg/telemetry"
	"crewchat/pkg/utils"
)

// Close codes sent when a connection is refused at the gate. The
// handshake is completed first so the client can observe the code.
const (
	CloseBadRequest   = 4400
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
)

const historySeed = 50

// Server runs the live chat surface for all crews.
type Server struct {
	registry *session.Registry
	dir      roster.Directory
	limiter  *ratelimit.Limiter
	names    func(userID string) string

	sessionTimeout time.Duration
	pushTimeout    time.Duration
	maxFrameBytes  int64
	sendBuffer     int

	// orderMu stripes persist-and-fanout per crew so every recipient
	// sees messages in the order they were stored.
	orderMu [16]sync.Mutex

	upgrader websocket.Upgrader
}

func (s *Server) crewOrder(crewID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(crewID))
	return &s.orderMu[h.Sum32()%16]
}

// NewServer wires the chat surface. names resolves a user ID to a
// display name; nil means IDs are shown as-is.
func NewServer(reg *session.Registry, dir roster.Directory, lim *ratelimit.Limiter, cfg config.ChatConfig, origins []string, names func(string) string) *Server {
	if names == nil {
		names = func(id string) string { return id }
	}
	allowed := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &Server{
		registry:       reg,
		dir:            dir,
		limiter:        lim,
		names:          names,
		sessionTimeout: cfg.SessionTimeoutOr(),
		pushTimeout:    cfg.PushTimeoutOr(),
		maxFrameBytes:  cfg.MaxFrameBytesOr(),
		sendBuffer:     cfg.SendBufferOr(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Registry exposes the live-session registry for maintenance sweeps.
func (s *Server) Registry() *session.Registry { return s.registry }

// credential pulls the identity token from the Authorization header or,
// for browser clients, from the "bearer" websocket subprotocol.
func credential(r *http.Request) (token string, viaProto bool) {
	if t := auth.BearerToken(r.Header.Get("Authorization")); t != "" {
		return t, false
	}
	protos := websocket.Subprotocols(r)
	if len(protos) >= 2 && protos[0] == "bearer" {
		return protos[1], true
	}
	return "", false
}

// ServeWS is the gate for GET /ws/chat/{crew}. The handshake always
// completes; refused connections are closed immediately with a close
// code so clients can distinguish auth failures from network faults.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	crewID := mux.Vars(r)["crew"]
	token, viaProto := credential(r)

	var respHeader http.Header
	if viaProto {
		respHeader = http.Header{"Sec-WebSocket-Protocol": {"bearer"}}
	}
	conn, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		logger.Debug("ws_upgrade_failed", "error", err)
		return
	}

	if crewID == "" {
		s.refuse(conn, CloseBadRequest, "missing crew id")
		return
	}
	if token == "" {
		s.refuse(conn, CloseUnauthorized, "missing identity token")
		return
	}
	userID, err := auth.VerifyIdentity(token)
	if err != nil {
		s.refuse(conn, CloseUnauthorized, "invalid identity token")
		return
	}
	if !s.dir.Exists(crewID) {
		s.refuse(conn, CloseBadRequest, "unknown crew")
		return
	}
	if !s.dir.IsMember(crewID, userID) {
		logger.Warn("ws_membership_refused", "crew", crewID, "user", userID)
		s.refuse(conn, CloseForbidden, "not a crew member")
		return
	}

	c := newClient(s, conn)
	sess := session.NewSession(utils.GenSessionID(), userID, crewID, c)
	c.sess = sess
	// One session per user per crew: a reconnect displaces the old
	// connection rather than coexisting with it. The registry takes the
	// ownership claim atomically, so racing connects cannot both stay.
	if prev := s.registry.Register(sess); prev != nil {
		logger.Info("session_replaced", "session", prev.ID, "user", userID, "crew", crewID)
	}
	telemetry.LiveSessions.Set(float64(s.registry.Count()))
	logger.Info("session_joined", "session", sess.ID, "crew", crewID, "user", userID)

	go c.writePump()
	s.seedHistory(c, crewID)
	go c.readPump()
}

// refuse completes teardown of a connection that never became a
// session: close frame with code and reason, then close.
func (s *Server) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(s.pushTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// drop unregisters a session and closes its connection.
func (s *Server) drop(c *client, reason string) {
	if c.sess != nil && s.registry.Unregister(c.sess.ID) {
		telemetry.LiveSessions.Set(float64(s.registry.Count()))
		logger.Info("session_left", "session", c.sess.ID, "reason", reason)
	}
	c.Close()
}
