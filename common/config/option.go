package config

import (
	"net"
	"os"
	"time"

	"github.com/favbox/asyncweb/app/server/registry"
	"github.com/favbox/asyncweb/network"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"
)

const (
	defaultNetwork         = "tcp"
	defaultAddr            = ":80"
	defaultPollInterval    = 500 * time.Millisecond
	defaultIdleTimeout     = 2 * time.Minute
	defaultSendWindow      = 5744 // 4 个 MSS
	defaultReadBufferSize  = 1460
	defaultMaxLineSize     = 1460
	defaultMaxFieldSize    = 4 * 1024
	defaultLoopQueueSize   = 1024
	defaultWaitExitTimeout = 5 * time.Second
	defaultRealm           = "asyncweb"
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	Network string `yaml:"network"` // 网络协议，可选 "tcp", "tcp4", "tcp6", "unix"，默认 "tcp"
	Addr    string `yaml:"addr"`    // 监听地址，默认 ":80"

	// PollInterval 是连接轮询事件的间隔，默认 500ms。
	// 填充回调返回 TryAgain 后，响应在下一次轮询或确认时继续。
	PollInterval time.Duration `yaml:"poll_interval"`

	// IdleTimeout 是连接无任何收发时的超时时间，默认 2 分钟，0 代表永不超时。
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SendWindow 是每个连接未确认字节数的上限，即 Client.Space 的最大值，默认 5744。
	SendWindow int `yaml:"send_window"`

	ReadBufferSize int `yaml:"read_buffer_size"` // 单次读取的缓冲大小，默认 1460
	MaxLineSize    int `yaml:"max_line_size"`    // 请求行与头部行的软上限，超过则应答 413，默认 1460
	MaxFieldSize   int `yaml:"max_field_size"`   // 多部分表单中非文件字段的最大长度，默认 4KB
	LoopQueueSize  int `yaml:"loop_queue_size"`  // 事件循环的任务队列长度，默认 1024

	ExitWaitTimeout time.Duration `yaml:"exit_wait_timeout"` // 优雅退出的等待时间，默认 5s
	ReusePort       bool          `yaml:"reuse_port"`        // 是否开启端口复用，默认否

	// Realm 是认证质询的默认域。
	Realm string `yaml:"realm"`

	// DisableMetrics 关闭 prometheus 指标采集。
	DisableMetrics bool `yaml:"disable_metrics"`

	ListenConfig *net.ListenConfig `yaml:"-"`

	// MetricsRegisterer 是指标的注册器，为空时使用 prometheus.DefaultRegisterer。
	MetricsRegisterer prometheus.Registerer `yaml:"-"`

	// TransporterNewer 是传输器的自定义创建函数。
	TransporterNewer func(opt *Options) network.Transporter `yaml:"-"`

	// Registry 用于服务注册，启动后注册、优雅退出时注销。
	Registry registry.Registry `yaml:"-"`
	// RegistryInfo 是服务注册信息。
	RegistryInfo *registry.Info `yaml:"-"`
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		Network:         defaultNetwork,
		Addr:            defaultAddr,
		PollInterval:    defaultPollInterval,
		IdleTimeout:     defaultIdleTimeout,
		SendWindow:      defaultSendWindow,
		ReadBufferSize:  defaultReadBufferSize,
		MaxLineSize:     defaultMaxLineSize,
		MaxFieldSize:    defaultMaxFieldSize,
		LoopQueueSize:   defaultLoopQueueSize,
		ExitWaitTimeout: defaultWaitExitTimeout,
		Realm:           defaultRealm,
		Registry:        registry.NoopRegistry,
	}
	options.Apply(opts)
	return options
}

// LoadFile 从 YAML 文件读取配置项，文件中未出现的字段保持默认值。
// 返回的 Option 可与其他配置方法一同传给 server.New。
func LoadFile(path string) (Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Option{}, err
	}
	return Parse(data)
}

// Parse 解析 YAML 格式的配置内容。
func Parse(data []byte) (Option, error) {
	// 先解析到临时结构以便尽早报告格式错误
	var parsed Options
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Option{}, err
	}
	return Option{F: func(o *Options) {
		_ = yaml.Unmarshal(data, o)
	}}, nil
}
