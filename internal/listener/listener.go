// ABOUTME: TCP listener that reassembles frames for one channel
// ABOUTME: Accepts a single active connection at a time; a new peer replaces the old one
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

const defaultReadBufferSize = 64 * 1024

// ErrNotStarted is returned when using a listener before Start
var ErrNotStarted = errors.New("listener not started")

// Observer receives listener events, typically for metrics
type Observer interface {
	FrameReceived(ch protocol.Channel, kind protocol.Kind, size int)
	BytesReceived(ch protocol.Channel, n int)
	ConnectionAccepted(ch protocol.Channel)
	ConnectionClosed(ch protocol.Channel)
}

// Config holds listener options
type Config struct {
	Address        string
	Channel        Channel
	Scheduler      Scheduler
	Observer       Observer
	Logger         *zap.SugaredLogger
	ReadBufferSize int
}

// Status is a snapshot of listener state
type Status struct {
	Channel        protocol.Channel
	Address        string
	Connected      bool
	Remote         string
	InBurst        bool
	FPS            int
	Connections    int64
	FramesReceived int64
	BytesReceived  int64
	Buffered       int
}

type chunk struct {
	gen  uint64
	data []byte
	err  error
}

// Listener accepts connections for one channel and feeds complete frames
// through the burst controller. Frame assembly and burst state are owned by
// a single goroutine; connection readers only forward raw chunks to it.
type Listener struct {
	config Config
	log    *zap.SugaredLogger
	ch     protocol.Channel

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	conns  chan net.Conn
	chunks chan chunk

	// owner goroutine state
	asm   protocol.Assembler
	burst *BurstController
	conn  net.Conn
	gen   uint64

	mu     sync.Mutex
	remote string

	connected   atomic.Bool
	inBurst     atomic.Bool
	fps         atomic.Int64
	connections atomic.Int64
	frames      atomic.Int64
	bytes       atomic.Int64
	buffered    atomic.Int64
}

// New creates a listener. Call Start to bind the port.
func New(config Config) *Listener {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaultReadBufferSize
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	ch := config.Channel.Channel()
	return &Listener{
		config: config,
		log:    config.Logger.With("channel", ch.String()),
		ch:     ch,
		burst:  NewBurstController(config.Channel, config.Scheduler),
		conns:  make(chan net.Conn),
		chunks: make(chan chunk, 64),
	}
}

// Start binds the TCP port and begins accepting connections
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.config.Address, err)
	}

	l.ln = ln
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(2)
	go l.acceptLoop()
	go l.ownerLoop()

	l.log.Infof("Listening for %s stream on %s", l.ch, ln.Addr())
	return nil
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close stops accepting, drops the active connection and waits for goroutines
func (l *Listener) Close() error {
	if l.ln == nil {
		return ErrNotStarted
	}
	l.cancel()
	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			l.log.Warnf("Accept error: %v", err)
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		select {
		case l.conns <- conn:
		case <-l.ctx.Done():
			conn.Close()
			return
		}
	}
}

func (l *Listener) ownerLoop() {
	defer l.wg.Done()
	defer l.dropConnection()

	for {
		select {
		case <-l.ctx.Done():
			return

		case conn := <-l.conns:
			l.replaceConnection(conn)

		case c := <-l.chunks:
			if c.gen != l.gen {
				continue
			}
			if c.err != nil {
				l.log.Infof("Connection from %s closed: %v", l.Remote(), c.err)
				l.dropConnection()
				continue
			}
			l.bytes.Add(int64(len(c.data)))
			if l.config.Observer != nil {
				l.config.Observer.BytesReceived(l.ch, len(c.data))
			}
			l.asm.Feed(c.data, l.handleFrame)
			l.buffered.Store(int64(l.asm.Buffered()))
		}
	}
}

func (l *Listener) replaceConnection(conn net.Conn) {
	if l.conn != nil {
		l.log.Infof("New connection from %s replaces %s", conn.RemoteAddr(), l.Remote())
	} else {
		l.log.Infof("Connection from %s", conn.RemoteAddr())
	}
	l.dropConnection()

	l.gen++
	l.conn = conn
	l.asm.Reset()
	l.buffered.Store(0)

	l.mu.Lock()
	l.remote = conn.RemoteAddr().String()
	l.mu.Unlock()

	l.connected.Store(true)
	l.connections.Add(1)
	if l.config.Observer != nil {
		l.config.Observer.ConnectionAccepted(l.ch)
	}

	l.wg.Add(1)
	go l.readLoop(conn, l.gen)
}

func (l *Listener) dropConnection() {
	if l.conn == nil {
		return
	}
	l.conn.Close()
	l.conn = nil
	// invalidate chunks still in flight from the old reader
	l.gen++
	l.connected.Store(false)
	if l.config.Observer != nil {
		l.config.Observer.ConnectionClosed(l.ch)
	}
}

func (l *Listener) readLoop(conn net.Conn, gen uint64) {
	defer l.wg.Done()

	for {
		buf := make([]byte, l.config.ReadBufferSize)
		n, err := conn.Read(buf)
		if n > 0 {
			select {
			case l.chunks <- chunk{gen: gen, data: buf[:n]}:
			case <-l.ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case l.chunks <- chunk{gen: gen, err: err}:
			case <-l.ctx.Done():
			}
			return
		}
	}
}

func (l *Listener) handleFrame(payload []byte) {
	route := l.burst.Process(payload, time.Now())

	l.frames.Add(1)
	l.inBurst.Store(l.burst.InBurst())
	l.fps.Store(int64(l.burst.FPS()))
	if l.config.Observer != nil {
		l.config.Observer.FrameReceived(l.ch, route.Kind, len(payload))
	}

	switch route.Kind {
	case protocol.KindHeader:
		l.log.Debugw("Burst started", "header", string(payload), "fps", l.burst.FPS())
	case protocol.KindEnd:
		l.log.Debugw("Burst ended")
	}
}

// Remote returns the active peer address
func (l *Listener) Remote() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remote
}

// Status returns a snapshot of listener state
func (l *Listener) Status() Status {
	st := Status{
		Channel:        l.ch,
		Address:        l.config.Address,
		Connected:      l.connected.Load(),
		InBurst:        l.inBurst.Load(),
		FPS:            int(l.fps.Load()),
		Connections:    l.connections.Load(),
		FramesReceived: l.frames.Load(),
		BytesReceived:  l.bytes.Load(),
		Buffered:       int(l.buffered.Load()),
	}
	if st.Connected {
		st.Remote = l.Remote()
	}
	if addr := l.Addr(); addr != nil {
		st.Address = addr.String()
	}
	return st
}
