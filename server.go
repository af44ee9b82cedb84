package milter

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milterd/milterd/codec"
	"github.com/milterd/milterd/internal/wire"
)

// ErrServerClosed is returned by Serve after a call to Close or Shutdown.
var ErrServerClosed = errors.New("milter: server closed")

// HandlerFactory builds one Handler per accepted connection. The server
// calls it once per connection, before the first command is read (§3
// "HandlerState ... instantiated before the first command").
type HandlerFactory func() *Handler

type options struct {
	handlerFactory HandlerFactory
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxFrameSize   uint32
	reuseAddr      bool
}

// Option configures a Server built with NewServer.
type Option func(*options)

// WithHandler sets the factory the server uses to build one Handler per
// connection. This option is required.
func WithHandler(factory HandlerFactory) Option {
	return func(o *options) { o.handlerFactory = factory }
}

// WithReadTimeout bounds how long a single command read may block. The
// zero value (the default) disables the read timeout; see §5 "the
// transport MAY enforce an idle-read timeout".
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds how long writing a single response may block.
// Defaults to 10 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithMaxFrameSize sets the ceiling §4.1 requires for inbound frames.
// Defaults to wire.DefaultMaxFrameSize (64KiB + slack).
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) { o.maxFrameSize = n }
}

// WithReuseAddr sets SO_REUSEADDR on the listening socket, as §6 requires.
// Only effective when the listener is created with Server.Listen; has no
// effect when an existing net.Listener is passed to Serve directly.
func WithReuseAddr(reuse bool) Option {
	return func(o *options) { o.reuseAddr = reuse }
}

// Server is a TCP milter server (§4.4). For each accepted connection it
// builds one Handler, wraps it in a Dispatcher, and drives the read/dispatch/
// write loop until the connection is closed.
type Server struct {
	options        options
	listeners      map[*net.Listener]struct{}
	listenerGroup  sync.WaitGroup
	activeSessions map[*connSession]struct{}
	mu             sync.Mutex
	inShutdown     atomic.Bool
}

// NewServer builds a Server. WithHandler is required; NewServer panics if
// it was not supplied.
func NewServer(opts ...Option) *Server {
	o := options{
		writeTimeout: 10 * time.Second,
		maxFrameSize: wire.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.handlerFactory == nil {
		panic("milter: you need to use WithHandler in NewServer call")
	}
	return &Server{options: o}
}

// Listen opens a listener on network/addr, setting SO_REUSEADDR when
// WithReuseAddr(true) was given to NewServer (§6). network is typically
// "tcp", "tcp4", "tcp6" or "unix"; SO_REUSEADDR is a no-op for "unix".
func (s *Server) Listen(network, addr string) (net.Listener, error) {
	lc := net.ListenConfig{}
	if s.options.reuseAddr {
		lc.Control = controlReuseAddr
	}
	return lc.Listen(context.Background(), network, addr)
}

// onceCloseListener wraps a net.Listener, protecting it from multiple Close calls.
type onceCloseListener struct {
	net.Listener
	once     sync.Once
	closeErr error
}

func (oc *onceCloseListener) Close() error {
	oc.once.Do(oc.close)
	return oc.closeErr
}

func (oc *onceCloseListener) close() { oc.closeErr = oc.Listener.Close() }

// Serve accepts connections on ln until the server is closed or ln fails.
// You may call Serve multiple times with different listeners; each runs its
// own accept loop. Serve returns ErrServerClosed once Close or Shutdown has
// been called.
func (s *Server) Serve(ln net.Listener) error {
	localLn := &onceCloseListener{Listener: ln}
	if !s.trackListener(localLn, true) {
		return ErrServerClosed
	}
	defer s.trackListener(localLn, false)

	for {
		conn, err := localLn.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			return err
		}
		LogInfo("accepted connection from %s", conn.RemoteAddr())
		go func(conn net.Conn) {
			sess := newConnSession(s, conn)
			if !s.trackSession(sess, true) {
				_ = conn.Close()
				return
			}
			sess.run()
			s.trackSession(sess, false)
			LogInfo("connection from %s closed", conn.RemoteAddr())
		}(conn)
	}
}

func (s *Server) closeListenersLocked() error {
	var errs []error
	for ln := range s.listeners {
		errs = append(errs, (*ln).Close())
	}
	s.listeners = nil
	return errors.Join(errs...)
}

func (s *Server) closeActiveSessionsLocked() {
	for sess := range s.activeSessions {
		sess.closeConn()
	}
	s.activeSessions = nil
}

// Close closes the server and all its listeners, and forcibly closes every
// active connection.
func (s *Server) Close() error {
	s.inShutdown.Store(true)
	s.mu.Lock()
	err := s.closeListenersLocked()
	s.mu.Unlock()
	s.listenerGroup.Wait()
	s.mu.Lock()
	s.closeActiveSessionsLocked()
	s.mu.Unlock()
	return err
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}

const shutdownPollIntervalMax = 500 * time.Millisecond

// Shutdown stops the server gracefully (§5: "Shutdown of the listener does
// not forcibly abort in-flight connections; workers observe termination at
// their next read and drain cleanly"). It closes all listeners immediately;
// each connection's worker finishes the command in hand and stops before
// its next read. Shutdown polls until every connection has finished, or
// until ctx is done, at which point any still-active connections (for
// example one whose worker is already blocked in a read) are closed
// forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	LogInfo("shutdown requested")
	s.inShutdown.Store(true)
	s.mu.Lock()
	lnErr := s.closeListenersLocked()
	s.mu.Unlock()
	s.listenerGroup.Wait()

	pollIntervalBase := time.Millisecond
	nextPollInterval := func() time.Duration {
		interval := pollIntervalBase + time.Duration(rand.Intn(int(pollIntervalBase/10)+1))
		pollIntervalBase *= 2
		if pollIntervalBase > shutdownPollIntervalMax {
			pollIntervalBase = shutdownPollIntervalMax
		}
		return interval
	}

	timer := time.NewTimer(nextPollInterval())
	defer timer.Stop()
	for {
		s.mu.Lock()
		activeCount := len(s.activeSessions)
		s.mu.Unlock()
		if activeCount == 0 {
			LogInfo("shutdown complete")
			return lnErr
		}
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closeActiveSessionsLocked()
			s.mu.Unlock()
			return ctx.Err()
		case <-timer.C:
			timer.Reset(nextPollInterval())
		}
	}
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[*net.Listener]struct{})
	}
	if add {
		if s.shuttingDown() {
			return false
		}
		s.listeners[&ln] = struct{}{}
		s.listenerGroup.Add(1)
	} else {
		delete(s.listeners, &ln)
		s.listenerGroup.Done()
	}
	return true
}

func (s *Server) trackSession(c *connSession, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeSessions == nil {
		s.activeSessions = make(map[*connSession]struct{})
	}
	if add {
		if s.shuttingDown() {
			return false
		}
		s.activeSessions[c] = struct{}{}
	} else {
		delete(s.activeSessions, c)
	}
	return true
}

// connSession drives one accepted connection's read/dispatch/write loop
// (§4.4). It is the only piece of the transport that knows about sockets;
// everything it calls (wire.ReadPacket/WritePacket, codec.DecodeCommand,
// Dispatcher.Dispatch) is pure or connection-agnostic.
type connSession struct {
	server *Server
	mu     sync.Mutex
	conn   net.Conn
}

func newConnSession(s *Server, conn net.Conn) *connSession {
	return &connSession{server: s, conn: conn}
}

func (c *connSession) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

var errSessionClosed = errors.New("milter: session closed")

func (c *connSession) readPacket() (*wire.Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, errSessionClosed
	}
	return wire.ReadPacket(conn, c.server.options.readTimeout, c.server.options.maxFrameSize)
}

func (c *connSession) writePacket(msg *wire.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errSessionClosed
	}
	return wire.WritePacket(conn, msg, c.server.options.writeTimeout)
}

// run is the per-connection worker loop (§4.4 steps 1-3). It exits, closing
// the connection, on a Close outcome or any read/write error. A partial
// frame observed when the MTA simply hangs up is not logged as an error
// (§4.4 "discarded without logging at error level").
func (c *connSession) run() {
	defer c.closeConn()

	handler := c.server.options.handlerFactory()
	d := NewDispatcher(handler)

	for {
		if c.server.shuttingDown() {
			// Close or Shutdown has begun: stop before the next read.
			return
		}
		msg, err := c.readPacket()
		if err != nil {
			return
		}
		cmd, err := codec.DecodeCommand(msg)
		if err != nil {
			// MalformedFrame (§7): close the connection, no response.
			return
		}
		outcome := c.dispatchSafely(d, cmd)
		switch outcome.Kind {
		case OutcomeSilent:
			// nothing to write
		case OutcomeRespond, OutcomeRespondMany:
			for _, resp := range outcome.Responses {
				if err := c.writePacket(resp.Encode()); err != nil {
					return
				}
			}
		case OutcomeClose:
			return
		}
	}
}

// dispatchSafely recovers a panicking handler callback and converts it into
// the InternalHandlerError outcome (§7), the Go analogue of "any other
// error... a bug".
func (c *connSession) dispatchSafely(d *Dispatcher, cmd codec.Command) (outcome DispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = recoverHandlerPanic(r)
		}
	}()
	return d.Dispatch(cmd)
}
