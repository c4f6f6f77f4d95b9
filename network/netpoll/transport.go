//go:build !windows

package netpoll

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/cloudwego/netpoll"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/network"
	"golang.org/x/sync/errgroup"
)

var _ network.Transporter = (*transport)(nil)

func init() {
	// 禁用 netpoll 的日志
	netpoll.SetLoggerOutput(io.Discard)
}

type sessionKey struct{}

type transport struct {
	sync.RWMutex
	network      string
	addr         string
	sendWindow   int
	listener     net.Listener
	eventLoop    netpoll.EventLoop
	loop         *network.Loop
	listenConfig *net.ListenConfig
	loopOptions  network.LoopOptions
}

// ListenAndServe 绑定监听地址并持续服务，除非出现错误或传输器关闭。
func (t *transport) ListenAndServe(onConnect network.OnConnect) (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	t.Lock()
	if t.listenConfig != nil {
		t.listener, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		t.listener, err = net.Listen(t.network, t.addr)
	}
	if err != nil {
		t.Unlock()
		return err
	}
	loop := network.NewLoop(t.loopOptions)
	t.loop = loop

	// 连接准备期间创建会话，关闭时投递断开事件
	t.eventLoop, err = netpoll.NewEventLoop(onRequest,
		netpoll.WithOnPrepare(func(conn netpoll.Connection) context.Context {
			s := network.NewSession(loop, conn, t.sendWindow)
			_ = conn.AddCloseCallback(func(netpoll.Connection) error {
				s.Hangup(nil)
				return nil
			})
			if !s.Open(onConnect) {
				return context.Background()
			}
			return context.WithValue(context.Background(), sessionKey{}, s)
		}),
	)
	eventLoop, ln := t.eventLoop, t.listener
	t.Unlock()
	if err != nil {
		_ = ln.Close()
		return err
	}

	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", ln.Addr().String())
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		if err := eventLoop.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			loop.Stop()
			return err
		}
		return nil
	})
	return g.Wait()
}

// onRequest 把可读数据零拷贝取出并投递到事件循环。
func onRequest(ctx context.Context, conn netpoll.Connection) error {
	s, ok := ctx.Value(sessionKey{}).(*network.Session)
	if !ok {
		return conn.Close()
	}
	reader := conn.Reader()
	n := reader.Len()
	if n == 0 {
		return nil
	}
	data, err := reader.Next(n)
	if err != nil {
		return err
	}
	delivered := s.Deliver(data)
	_ = reader.Release()
	if !delivered {
		return conn.Close()
	}
	return nil
}

// Close 强制传输器立即关闭（无超时等待）。
func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Shutdown 停止监听器并优雅关闭。将等待所有连接关闭，直到触达截止时间。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()
	t.RLock()
	eventLoop, loop := t.eventLoop, t.loop
	t.RUnlock()
	if eventLoop == nil {
		return nil
	}
	err := loop.Shutdown(ctx)
	if serr := eventLoop.Shutdown(ctx); err == nil {
		err = serr
	}
	return err
}

// Addr 返回实际监听的地址，未监听时返回 nil。
func (t *transport) Addr() net.Addr {
	t.RLock()
	defer t.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// NewTransporter 创建 netpoll 网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{
		network:      options.Network,
		addr:         options.Addr,
		sendWindow:   options.SendWindow,
		listenConfig: options.ListenConfig,
		loopOptions: network.LoopOptions{
			QueueSize:    options.LoopQueueSize,
			PollInterval: options.PollInterval,
			IdleTimeout:  options.IdleTimeout,
		},
	}
}
