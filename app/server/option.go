package server

import (
	"net"
	"time"

	"github.com/favbox/asyncweb/app/server/registry"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/network"
	"github.com/prometheus/client_golang/prometheus"
)

// WithHostPorts 指定监听的地址和端口。默认值：":80"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithNetwork 设置网络协议，可选：tcp，tcp4，tcp6，unix。默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithPollInterval 设置连接轮询的间隔。默认值 500ms。
//
// 暂无数据可发的响应在轮询时重试。
func WithPollInterval(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.PollInterval = t
	}}
}

// WithIdleTimeout 设置连接闲置的超时时间。默认值 2 分钟。
//
// 超时后触发 OnTimeout，正在进行的请求以失败收场。
func WithIdleTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.IdleTimeout = t
	}}
}

// WithSendWindow 设置每个连接的发送窗口。默认值 5744。
func WithSendWindow(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.SendWindow = size
	}}
}

// WithReadBufferSize 设置单次读取的缓冲大小。默认值 1460。
func WithReadBufferSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadBufferSize = size
	}}
}

// WithMaxLineSize 设置请求行与头部行的软上限。默认值 1460。
func WithMaxLineSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxLineSize = size
	}}
}

// WithMaxFieldSize 设置多部分表单中非文件字段的最大长度。默认值 4KB。
func WithMaxFieldSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxFieldSize = size
	}}
}

// WithLoopQueueSize 设置事件循环的任务队列长度。默认值 1024。
func WithLoopQueueSize(size int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.LoopQueueSize = size
	}}
}

// WithExitWaitTime 设置优雅退出的等待时间。默认值 5 秒。
func WithExitWaitTime(timeout time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = timeout
	}}
}

// WithReusePort 设置是否开启端口复用。默认值：否。
func WithReusePort(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReusePort = b
	}}
}

// WithRealm 设置认证质询的默认域。
func WithRealm(realm string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Realm = realm
	}}
}

// WithDisableMetrics 关闭指标采集。
func WithDisableMetrics(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.DisableMetrics = b
	}}
}

// WithMetricsRegisterer 设置指标注册器。默认值：prometheus.DefaultRegisterer。
func WithMetricsRegisterer(r prometheus.Registerer) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MetricsRegisterer = r
	}}
}

// WithListenConfig 设置监听器配置。如配置是否允许端口重用。
func WithListenConfig(l *net.ListenConfig) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenConfig = l
	}}
}

// WithTransport 更换网络传输器。默认值：standard.NewTransporter。
func WithTransport(transporter func(opts *config.Options) network.Transporter) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TransporterNewer = transporter
	}}
}

// WithRegistry 设置注册中心配置，服务注册信息。
// 默认值：registry.NoopRegistry, nil
func WithRegistry(r registry.Registry, info *registry.Info) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Registry = r
		o.RegistryInfo = info
	}}
}

// WithConfigFile 从 YAML 文件加载配置，文件读取或解析失败时记录日志并保持原值。
func WithConfigFile(path string) config.Option {
	return config.Option{F: func(o *config.Options) {
		opt, err := config.LoadFile(path)
		if err != nil {
			hlog.SystemLogger().Errorf("加载配置文件 %s 出错：%v", path, err)
			return
		}
		opt.F(o)
	}}
}
