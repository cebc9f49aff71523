package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"velicia/generation"
	"velicia/llm"
	"velicia/store"
)

// Catalog is the model listing the server exposes. *llm.Router satisfies it.
type Catalog interface {
	Models() []llm.Descriptor
	DefaultModel() string
}

// Options configures a Server.
type Options struct {
	Controller     *generation.Controller
	Store          store.SessionStore
	Catalog        Catalog
	Logger         hclog.Logger
	AllowedOrigins []string
}

// RequestHandler processes one request from a connection and returns the
// reply, if any.
type RequestHandler func(c *conn, env *Envelope) (*Envelope, error)

// Server exposes sessions and generation over WebSocket. Every store change
// and state transition is pushed to all connected clients.
type Server struct {
	controller *generation.Controller
	store      store.SessionStore
	catalog    Catalog
	logger     hclog.Logger
	upgrader   websocket.Upgrader
	handlers   map[MessageType]RequestHandler

	mu    sync.Mutex
	conns map[*conn]struct{}

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewServer creates a server and subscribes it to the store and controller.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		controller: opts.Controller,
		store:      opts.Store,
		catalog:    opts.Catalog,
		logger:     logger,
		handlers:   make(map[MessageType]RequestHandler),
		conns:      make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	s.registerHandlers()

	s.unsubscribe = s.store.Subscribe(s.onSessionChanged)
	s.controller.OnStateChange(s.onStateChanged)
	return s
}

// originChecker allows every origin when none are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Handler returns the HTTP routes: /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close disconnects every client and waits for in-flight generations.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
}

// ConnectionCount returns the number of open client connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(s, ws)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.logger.Debug("client disconnected", "remote", c.ws.RemoteAddr().String())
}

// broadcast sends env to every open connection.
func (s *Server) broadcast(env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshal broadcast", "type", env.Type, "error", err)
		return
	}
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.enqueue(data)
	}
}

func (s *Server) onSessionChanged(sess store.Session) {
	env, err := NewEvent(TypeSessionUpdated, &SessionPayload{Session: sess})
	if err != nil {
		s.logger.Error("build session_updated", "error", err)
		return
	}
	s.broadcast(env)
}

func (s *Server) onStateChanged(change generation.StateChange) {
	env, err := NewEvent(TypeGenerationState, &GenerationStatePayload{
		SessionID: change.SessionID,
		State:     change.To,
		Searching: change.Searching,
	})
	if err != nil {
		s.logger.Error("build generation_state", "error", err)
		return
	}
	s.broadcast(env)
}

func (s *Server) dispatch(c *conn, env *Envelope) {
	handler, ok := s.handlers[env.Type]
	if !ok {
		s.logger.Debug("unhandled message type", "type", env.Type)
		c.sendError(env.RequestID, CodeUnknownType, "unknown message type: "+string(env.Type))
		return
	}
	resp, err := handler(c, env)
	if err != nil {
		code := CodeInternal
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			code = reqErr.code
		}
		c.sendError(env.RequestID, code, err.Error())
		return
	}
	if resp != nil {
		c.send(resp)
	}
}

// requestError is a handler failure with a protocol error code.
type requestError struct {
	code string
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }
