package standard

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/network"
	"golang.org/x/sync/errgroup"
)

const defaultReadBufferSize = 1460

var _ network.Transporter = (*transport)(nil)

type transport struct {
	// 每次读取的缓冲区大小。
	readBufferSize int
	sendWindow     int
	network        string
	addr           string
	listenConfig   *net.ListenConfig
	loopOptions    network.LoopOptions

	lock sync.Mutex
	ln   net.Listener
	loop *network.Loop
}

// ListenAndServe 绑定监听地址并持续服务，直到出现错误或传输器关闭。
func (t *transport) ListenAndServe(onConnect network.OnConnect) (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)
	t.lock.Lock()
	if t.listenConfig != nil {
		t.ln, err = t.listenConfig.Listen(context.Background(), t.network, t.addr)
	} else {
		t.ln, err = net.Listen(t.network, t.addr)
	}
	if err != nil {
		t.lock.Unlock()
		return err
	}
	ln := t.ln
	loop := network.NewLoop(t.loopOptions)
	t.loop = loop
	t.lock.Unlock()

	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", ln.Addr().String())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return t.serve(ln, loop, onConnect)
	})
	return g.Wait()
}

func (t *transport) serve(ln net.Listener, loop *network.Loop, onConnect network.OnConnect) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			hlog.SystemLogger().Errorf("接受连接出错：%s", err.Error())
			loop.Stop()
			return err
		}

		s := network.NewSession(loop, conn, t.sendWindow)
		if !s.Open(onConnect) {
			return nil
		}
		gopool.Go(func() {
			t.read(conn, s)
		})
	}
}

// read 把收到的数据投递到事件循环，直到连接关闭。
func (t *transport) read(conn net.Conn, s *network.Session) {
	buf := mcache.Malloc(t.readBufferSize)
	defer mcache.Free(buf)
	for {
		n, err := conn.Read(buf)
		if n > 0 && !s.Deliver(buf[:n]) {
			_ = conn.Close()
			return
		}
		if err != nil {
			s.Hangup(err)
			return
		}
	}
}

// Close 立即关闭传输器，不等待连接结束。
func (t *transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Shutdown 停止监听，等待所有连接断开直到 ctx 结束，然后停止事件循环。
func (t *transport) Shutdown(ctx context.Context) error {
	defer func() {
		_ = network.UnlinkUdsFile(t.network, t.addr)
	}()

	t.lock.Lock()
	ln, loop := t.ln, t.loop
	t.lock.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if loop == nil {
		return nil
	}
	return loop.Shutdown(ctx)
}

// Addr 返回实际监听的地址，未监听时返回 nil。
func (t *transport) Addr() net.Addr {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// NewTransporter 创建标准库网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	readBufferSize := options.ReadBufferSize
	if readBufferSize <= 0 {
		readBufferSize = defaultReadBufferSize
	}
	return &transport{
		readBufferSize: readBufferSize,
		sendWindow:     options.SendWindow,
		network:        options.Network,
		addr:           options.Addr,
		listenConfig:   options.ListenConfig,
		loopOptions: network.LoopOptions{
			QueueSize:    options.LoopQueueSize,
			PollInterval: options.PollInterval,
			IdleTimeout:  options.IdleTimeout,
		},
	}
}
