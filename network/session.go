package network

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/gopool"
	errs "github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/common/hlog"
)

const (
	writeQueueSize = 64
	closeGrace     = 5 * time.Second
)

var _ Client = (*Session)(nil)

// Session 把一条 net.Conn 适配为 Client。
//
// 写入先复制到 mcache 缓冲区，由写协程交付内核后在事件循环上回调 OnAck 并释放窗口。
// 读协程通过 Deliver 与 Hangup 把数据和断开投递到事件循环。
type Session struct {
	loop *Loop
	conn net.Conn
	out  chan []byte

	mu     sync.Mutex
	closed bool

	// 仅在事件循环上访问
	window     Window
	events     Events
	gone       bool
	lastActive time.Time
}

// NewSession 创建会话，sendWindow 为发送窗口大小。
func NewSession(loop *Loop, conn net.Conn, sendWindow int) *Session {
	return &Session{
		loop:   loop,
		conn:   conn,
		out:    make(chan []byte, writeQueueSize),
		window: NewWindow(sendWindow),
	}
}

// Open 在事件循环上调用 onConnect 并启动写协程。事件循环已停止时关闭连接并返回 false。
func (s *Session) Open(onConnect OnConnect) bool {
	ok := s.loop.Post(func() {
		s.lastActive = time.Now()
		s.events = onConnect(s)
		if s.events == nil {
			s.gone = true
			_ = s.Close()
			return
		}
		s.loop.sessions[s] = struct{}{}
	})
	if !ok {
		_ = s.conn.Close()
		return false
	}
	gopool.Go(s.writeLoop)
	return true
}

// Deliver 投递收到的数据，p 会被复制。可在任意协程调用。
func (s *Session) Deliver(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	buf := mcache.Malloc(len(p))
	copy(buf, p)
	ok := s.loop.Post(func() {
		defer mcache.Free(buf)
		if s.gone {
			return
		}
		s.lastActive = time.Now()
		s.events.OnData(buf)
	})
	if !ok {
		mcache.Free(buf)
	}
	return ok
}

// Hangup 投递连接断开，err 为读取错误。可在任意协程调用。
func (s *Session) Hangup(err error) {
	s.loop.Post(func() {
		if s.gone {
			return
		}
		if err != nil && !s.isClosed() && !IsClosedError(err) {
			hlog.SystemLogger().Warnf(hlog.TransportErrorFormat, s.conn.RemoteAddr(), err)
			s.events.OnError(errs.NewTransport(err))
		}
		s.teardown()
	})
}

func (s *Session) Write(b []byte) int {
	n := len(b)
	if space := s.Space(); n > space {
		n = space
	}
	if n <= 0 {
		return 0
	}
	buf := mcache.Malloc(n)
	copy(buf, b[:n])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		mcache.Free(buf)
		return 0
	}
	select {
	case s.out <- buf:
	default:
		mcache.Free(buf)
		return 0
	}
	s.window.Reserve(n)
	return n
}

func (s *Session) Space() int {
	if s.isClosed() || len(s.out) == cap(s.out) {
		return 0
	}
	return s.window.Space()
}

func (s *Session) CanSend() bool {
	return s.Space() > 0
}

// Close 停止接受写入，写协程发送完已接受的字节后关闭连接。
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(closeGrace))
	return nil
}

func (s *Session) Post(fn func()) bool {
	return s.loop.TryPost(fn)
}

func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) writeLoop() {
	var failed bool
	for buf := range s.out {
		if failed {
			mcache.Free(buf)
			continue
		}
		start := time.Now()
		n, err := s.conn.Write(buf)
		mcache.Free(buf)
		if err != nil {
			failed = true
			s.Hangup(err)
			continue
		}
		elapsed := time.Since(start)
		s.loop.Post(func() {
			if s.gone {
				return
			}
			s.window.Release(n)
			s.lastActive = time.Now()
			s.events.OnAck(n, elapsed)
		})
	}
	_ = s.conn.Close()
}

func (s *Session) timeout() {
	if s.gone {
		return
	}
	s.events.OnTimeout()
	s.teardown()
}

// teardown 在事件循环上断开连接，只执行一次。
func (s *Session) teardown() {
	if s.gone {
		return
	}
	s.gone = true
	delete(s.loop.sessions, s)
	_ = s.Close()
	s.events.OnDisconnect()
}

// IsClosedError 判断是否为连接关闭或被重置产生的错误。
func IsClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, errs.ErrConnectionClosed)
}
