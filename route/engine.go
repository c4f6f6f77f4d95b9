package route

import (
	"context"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/common/config"
	errs "github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/internal/nocopy"
	"github.com/favbox/asyncweb/internal/stats"
	"github.com/favbox/asyncweb/network"
	"github.com/favbox/asyncweb/network/standard"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/auth"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/protocol/http1/req"
)

const unknownTransporterName = "unknown"

const (
	_ uint32 = iota
	statusInitialized
	statusRunning
	statusShutdown
	statusClosed
)

var (
	// 默认网络传输器（基于标准库实现，另外可选 netpoll.NewTransporter）
	defaultTransporter = standard.NewTransporter

	errInitFailed       = errs.NewPrivate("路由引擎已经初始化")
	errAlreadyRunning   = errs.NewPrivate("路由引擎已在运行中")
	errStatusNotRunning = errs.NewPrivate("路由引擎未在运行中")
)

// CtxCallback 引擎关闭时，同时触发的钩子函数
type CtxCallback func(ctx context.Context)

// CtxErrCallback 引擎启动时，依次触发的钩子函数
type CtxErrCallback func(ctx context.Context) error

// SetTransporter 设置全局默认的网络传输器。
func SetTransporter(transporter func(options *config.Options) network.Transporter) {
	defaultTransporter = transporter
}

// Engine 路由引擎，持有改写规则、处理器列表、兜底处理器与网络传输器。
//
// 改写规则、处理器与默认标头只能在 Begin 之前修改。
type Engine struct {
	noCopy nocopy.NoCopy

	// 路由器和服务器的选项
	options *config.Options

	// 路由
	RouterGroup
	rewrites    []*app.Rewrite
	handlers    []app.Handler
	catchAll    *app.CatchAllHandler
	middlewares []app.Middleware

	// 请求共享的运行环境
	env     app.Env
	metrics *stats.Metrics

	// 底层传输的网络库，现有 go net 和 netpoll 两个选择
	transport network.Transporter

	// 用于表示引擎状态（Init/Running/Shutdown/Closed）。
	status uint32

	// OnRun 是引擎启动时，依次触发的一组钩子函数。
	OnRun []CtxErrCallback

	// OnShutdown 是引擎关闭时，并行触发的一组钩子函数。
	OnShutdown []CtxCallback
}

// NewEngine 创建给定选项的路由引擎。
func NewEngine(opts *config.Options) *Engine {
	if opts.ReusePort && opts.ListenConfig == nil {
		opts.ListenConfig = network.ReusePortListenConfig()
	}
	engine := &Engine{
		RouterGroup: RouterGroup{
			basePath: "/",
			root:     true,
		},
		options:  opts,
		catchAll: &app.CatchAllHandler{},
	}
	engine.RouterGroup.engine = engine
	if opts.TransporterNewer != nil {
		engine.transport = opts.TransporterNewer(opts)
	} else {
		engine.transport = defaultTransporter(opts)
	}
	if !opts.DisableMetrics {
		engine.metrics = stats.New(opts.MetricsRegisterer)
	}
	engine.env = app.Env{
		Router: engine,
		Nonces: auth.NewNonceStore(0),
		Realm:  opts.Realm,
		Parser: req.Options{
			MaxLineSize:  opts.MaxLineSize,
			MaxFieldSize: opts.MaxFieldSize,
		},
		Metrics: engine.metrics,
	}
	return engine
}

// Route 应用改写规则并选择处理器，实现 app.Router。
func (engine *Engine) Route(r *app.Request) app.Handler {
	for _, rw := range engine.rewrites {
		if rw.Match(r) {
			rw.Apply(r)
			break
		}
	}
	for _, h := range engine.handlers {
		r.ResetPathArgs()
		if h.Filter(r) && h.CanHandle(r) {
			return h
		}
	}
	r.ResetPathArgs()
	r.AddInterestingHeader(consts.InterestingAny)
	return engine.catchAll
}

// NotFound 返回兜底处理器，实现 app.Router。
func (engine *Engine) NotFound() app.Handler {
	return engine.catchAll
}

// Accept 为新连接创建请求，可作为 network.OnConnect 使用。
func (engine *Engine) Accept(c network.Client) network.Events {
	return app.NewRequest(c, &engine.env)
}

// Wrap 追加请求回调的中间件，作用于之后注册的回调处理器与兜底回调。
// 先追加的中间件位于外层。
func (engine *Engine) Wrap(mw ...app.Middleware) {
	engine.middlewares = append(engine.middlewares, mw...)
}

func (engine *Engine) wrap(fn app.RequestFunc) app.RequestFunc {
	if fn == nil {
		return nil
	}
	for i := len(engine.middlewares) - 1; i >= 0; i-- {
		fn = engine.middlewares[i](fn)
	}
	return fn
}

// On 注册 uri 的回调处理器。
func (engine *Engine) On(uri string, method consts.Method, fn app.RequestFunc) *app.CallbackHandler {
	h := app.NewCallbackHandler(uri, method, engine.wrap(fn))
	engine.AddHandler(h)
	return h
}

// ServeStatic 把 uri 下的请求映射到 fsys 的 root 目录。
func (engine *Engine) ServeStatic(uri string, fsys fs.FS, root, cacheControl string) *app.StaticHandler {
	h := app.NewStaticHandler(uri, fsys, root, cacheControl)
	engine.AddHandler(h)
	return h
}

// ServeDir 把 uri 下的请求映射到操作系统目录 dir，并监听目录变动。
func (engine *Engine) ServeDir(uri, dir, cacheControl string) *app.StaticHandler {
	h := engine.ServeStatic(uri, os.DirFS(dir), "/", cacheControl)
	if err := h.Watch(dir); err != nil {
		hlog.SystemLogger().Warnf("监听静态目录 %s 失败：%v", dir, err)
	}
	return h
}

// ServeMetrics 在 uri 上以 prometheus 文本格式输出指标。
func (engine *Engine) ServeMetrics(uri string) *app.CallbackHandler {
	return engine.On(uri, consts.MethodGet, func(r *app.Request) {
		stream := r.BeginResponseStream(stats.ContentType)
		if err := engine.metrics.WriteText(stream); err != nil {
			hlog.SystemLogger().Errorf("输出指标失败：%v", err)
			stream.Release()
			r.SendStatus(consts.StatusInternalServerError)
			return
		}
		r.Send(stream.Response)
	})
}

// Rewrite 添加改写规则。
func (engine *Engine) Rewrite(from, to string) *app.Rewrite {
	return engine.AddRewrite(app.NewRewrite(from, to))
}

// AddRewrite 追加改写规则，规则按添加顺序匹配。
func (engine *Engine) AddRewrite(rw *app.Rewrite) *app.Rewrite {
	engine.rewrites = append(engine.rewrites, rw)
	return rw
}

// RemoveRewrite 移除改写规则。
func (engine *Engine) RemoveRewrite(rw *app.Rewrite) bool {
	for i, v := range engine.rewrites {
		if v == rw {
			engine.rewrites = append(engine.rewrites[:i], engine.rewrites[i+1:]...)
			return true
		}
	}
	return false
}

// AddHandler 追加处理器，处理器按添加顺序匹配。
func (engine *Engine) AddHandler(h app.Handler) app.Handler {
	engine.handlers = append(engine.handlers, h)
	return h
}

// RemoveHandler 移除处理器。
func (engine *Engine) RemoveHandler(h app.Handler) bool {
	for i, v := range engine.handlers {
		if v == h {
			engine.handlers = append(engine.handlers[:i], engine.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Handlers 返回已注册的处理器数量。
func (engine *Engine) Handlers() int { return len(engine.handlers) }

// Rewrites 返回已注册的改写规则数量。
func (engine *Engine) Rewrites() int { return len(engine.rewrites) }

// OnNotFound 设置未匹配任何处理器时的回调。
func (engine *Engine) OnNotFound(fn app.RequestFunc) { engine.catchAll.SetRequest(engine.wrap(fn)) }

// OnFileUpload 设置未匹配任何处理器时的文件上传回调。
func (engine *Engine) OnFileUpload(fn app.UploadFunc) { engine.catchAll.SetUpload(fn) }

// OnRequestBody 设置未匹配任何处理器时的正文回调。
func (engine *Engine) OnRequestBody(fn app.BodyFunc) { engine.catchAll.SetBody(fn) }

// Reset 清空改写规则、处理器与兜底回调。
func (engine *Engine) Reset() {
	engine.closeHandlers()
	engine.rewrites = nil
	engine.handlers = nil
	engine.catchAll.Reset()
}

// Begin 冻结默认标头并将引擎切换至已初始化。
func (engine *Engine) Begin() error {
	if !atomic.CompareAndSwapUint32(&engine.status, 0, statusInitialized) {
		return errInitFailed
	}
	protocol.DefaultHeaders().Freeze()
	return nil
}

// End 立即关闭引擎。
func (engine *Engine) End() error {
	return engine.Close()
}

// Run 初始化引擎并开始监听服务，直到出错或被关闭。
func (engine *Engine) Run() (err error) {
	if atomic.LoadUint32(&engine.status) == 0 {
		if err = engine.Begin(); err != nil {
			return err
		}
	}

	// 切换引擎状态为运行中
	if err = engine.MarkAsRunning(); err != nil {
		return err
	}

	// 返回监听服务出错后，切换引擎转改至已关闭
	defer atomic.SwapUint32(&engine.status, statusClosed)

	// 依次触发可能存在的启动钩子
	ctx := context.Background()
	for i := range engine.OnRun {
		if err = engine.OnRun[i](ctx); err != nil {
			return err
		}
	}

	hlog.SystemLogger().Infof("使用网络库=%s", engine.GetTransporterName())
	return engine.transport.ListenAndServe(engine.Accept)
}

// MarkAsRunning 将引擎状态切至运行中。
func (engine *Engine) MarkAsRunning() error {
	if !atomic.CompareAndSwapUint32(&engine.status, statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	return nil
}

// Shutdown 优雅关闭：触发关闭钩子，停止监听并等待连接结束，直到 ctx 结束。
func (engine *Engine) Shutdown(ctx context.Context) (err error) {
	if atomic.LoadUint32(&engine.status) != statusRunning {
		return errStatusNotRunning
	}
	if !atomic.CompareAndSwapUint32(&engine.status, statusRunning, statusShutdown) {
		return
	}

	ch := make(chan struct{}, 1)
	// 触发可能的钩子
	go engine.executeOnShutdownHooks(ctx, ch)
	defer func() {
		// 确保钩子执行完成或超时
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdownHooks 超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdownHooks 完成")
		}
	}()

	engine.closeHandlers()

	// 注销服务
	if opt := engine.options; opt != nil && opt.Registry != nil {
		if err = opt.Registry.Deregister(opt.RegistryInfo); err != nil {
			hlog.SystemLogger().Errorf("服务注销出错：%v", err)
			return err
		}
	}

	if err = engine.transport.Shutdown(ctx); err != ctx.Err() {
		return err
	}
	return nil
}

// Close 立即关闭传输器，不等待连接结束。
func (engine *Engine) Close() error {
	engine.closeHandlers()
	return engine.transport.Close()
}

// closeHandlers 关闭持有资源的处理器，如静态目录的监听。
func (engine *Engine) closeHandlers() {
	for _, h := range engine.handlers {
		if c, ok := h.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// IsRunning 判断引擎是否运行中。
func (engine *Engine) IsRunning() bool {
	return atomic.LoadUint32(&engine.status) == statusRunning
}

// GetOptions 返回引擎的选项。
func (engine *Engine) GetOptions() *config.Options {
	return engine.options
}

// GetTransporterName 获取引擎正在使用的网络传输器名称。
func (engine *Engine) GetTransporterName() string {
	return getTransporterName(engine.transport)
}

// Transporter 返回引擎使用的网络传输器。
func (engine *Engine) Transporter() network.Transporter {
	return engine.transport
}

func (engine *Engine) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	wg := sync.WaitGroup{}
	for i := range engine.OnShutdown {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			engine.OnShutdown[index](ctx)
		}(i)
	}
	wg.Wait()
	ch <- struct{}{}
}

func getTransporterName(transporter network.Transporter) (tName string) {
	defer func() {
		err := recover()
		if err != nil || tName == "" {
			tName = unknownTransporterName
		}
	}()
	t := reflect.ValueOf(transporter).Type().String()
	tName = strings.Split(strings.TrimPrefix(t, "*"), ".")[0]
	return tName
}
