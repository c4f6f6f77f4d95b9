package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/favbox/asyncweb/app/middlewares/server/recovery"
	"github.com/favbox/asyncweb/app/server/registry"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/common/utils"
	"github.com/favbox/asyncweb/route"
)

// 启动后延迟注册的时长，等待监听就绪。
var registerDelay = time.Second

// New 创建一个无默认中间件的 asyncweb 实例。
func New(opts ...config.Option) *AsyncWeb {
	options := config.NewOptions(opts)
	return &AsyncWeb{
		Engine: route.NewEngine(options),
	}
}

// Default 创建默认带有 recovery 中间件的 asyncweb 实例。
func Default(opts ...config.Option) *AsyncWeb {
	w := New(opts...)
	w.Wrap(recovery.Recovery())
	return w
}

// AsyncWeb 组合了路由引擎 route.Engine 和优雅退出函数。
type AsyncWeb struct {
	*route.Engine
	// 用于接收信息实现优雅退出
	signalWaiter func(err chan error) error
}

// Addr 返回实际监听的地址，传输器未监听或不支持时返回 nil。
func (w *AsyncWeb) Addr() net.Addr {
	if t, ok := w.Transporter().(interface{ Addr() net.Addr }); ok {
		return t.Addr()
	}
	return nil
}

// Spin 运行服务器直至捕获 os.Signal 或 w.Run 返回错误。
func (w *AsyncWeb) Spin() {
	errCh := make(chan error, 1)
	w.initOnRunHooks(errCh)
	go func() {
		errCh <- w.Run()
	}()

	signalWaiter := defaultSignalWaiter
	if w.signalWaiter != nil {
		signalWaiter = w.signalWaiter
	}

	if err := signalWaiter(errCh); err != nil {
		hlog.SystemLogger().Errorf("收到退出信号：错误=%v", err)
		if err = w.Engine.Close(); err != nil {
			hlog.SystemLogger().Errorf("退出错误：%v", err)
		}
		return
	}

	hlog.SystemLogger().Infof("开始优雅退出，最多等待 %d 秒...", w.GetOptions().ExitWaitTimeout/time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), w.GetOptions().ExitWaitTimeout)
	defer cancel()

	if err := w.Shutdown(ctx); err != nil {
		hlog.SystemLogger().Errorf("退出错误：%v", err)
	}
}

// SetCustomSignalWaiter 设置自定义的信号等待者。
// f 返回错误时立即退出，否则优雅退出。
func (w *AsyncWeb) SetCustomSignalWaiter(f func(err chan error) error) {
	w.signalWaiter = f
}

// 添加服务注册钩子，注册失败时把错误传给 errCh。
func (w *AsyncWeb) initOnRunHooks(errCh chan error) {
	opts := w.GetOptions()
	if opts.Registry == nil || opts.Registry == registry.NoopRegistry {
		return
	}
	// 注销时需用同一份信息，故在启动前补全
	opts.RegistryInfo = fillRegistryInfo(opts.RegistryInfo, opts.Network, opts.Addr)
	info := opts.RegistryInfo
	w.OnRun = append(w.OnRun, func(ctx context.Context) error {
		go func() {
			time.Sleep(registerDelay)
			if err := opts.Registry.Register(info); err != nil {
				hlog.SystemLogger().Errorf("服务注册出错：%v", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}()
		return nil
	})
}

func fillRegistryInfo(info *registry.Info, network, addr string) *registry.Info {
	if info == nil {
		info = &registry.Info{}
	}
	if info.ServiceName == "" {
		info.ServiceName = registry.DefaultServiceName
	}
	if info.Addr == nil {
		if strings.HasPrefix(network, "tcp") {
			addr = utils.AdvertiseAddr(addr)
		}
		info.Addr = registry.NewNetAddr(network, addr)
	}
	if info.Weight == 0 {
		info.Weight = registry.DefaultWeight
	}
	return info
}

// 信号等待者的默认实现。
// SIGTERM 立即退出，SIGHUP 与 SIGINT 触发优雅退出。
func defaultSignalWaiter(errCh chan error) error {
	signalToNotify := []os.Signal{syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM}
	if signal.Ignored(syscall.SIGHUP) {
		signalToNotify = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, signalToNotify...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		switch sig {
		case syscall.SIGTERM:
			return errors.NewPublic(sig.String())
		case syscall.SIGHUP, syscall.SIGINT:
			hlog.SystemLogger().Infof("收到退出信号：%s", sig)
			return nil
		}
	case err := <-errCh:
		return err
	}
	return nil
}
