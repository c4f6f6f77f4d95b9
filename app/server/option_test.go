package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/favbox/asyncweb/app/server/registry"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	info := &registry.Info{
		ServiceName: "asyncweb.test.api",
		Addr:        registry.NewNetAddr("tcp", ":8888"),
		Weight:      10,
	}
	reg := prometheus.NewRegistry()
	lc := &net.ListenConfig{}
	transporter := func(*config.Options) network.Transporter { return nil }
	opt := config.NewOptions([]config.Option{
		WithHostPorts(":8888"),
		WithNetwork("unix"),
		WithPollInterval(time.Second),
		WithIdleTimeout(time.Minute),
		WithSendWindow(100),
		WithReadBufferSize(200),
		WithMaxLineSize(300),
		WithMaxFieldSize(400),
		WithLoopQueueSize(16),
		WithExitWaitTime(2 * time.Second),
		WithReusePort(true),
		WithRealm("area"),
		WithDisableMetrics(true),
		WithMetricsRegisterer(reg),
		WithListenConfig(lc),
		WithTransport(transporter),
		WithRegistry(nil, info),
	})
	assert.Equal(t, ":8888", opt.Addr)
	assert.Equal(t, "unix", opt.Network)
	assert.Equal(t, time.Second, opt.PollInterval)
	assert.Equal(t, time.Minute, opt.IdleTimeout)
	assert.Equal(t, 100, opt.SendWindow)
	assert.Equal(t, 200, opt.ReadBufferSize)
	assert.Equal(t, 300, opt.MaxLineSize)
	assert.Equal(t, 400, opt.MaxFieldSize)
	assert.Equal(t, 16, opt.LoopQueueSize)
	assert.Equal(t, 2*time.Second, opt.ExitWaitTimeout)
	assert.True(t, opt.ReusePort)
	assert.Equal(t, "area", opt.Realm)
	assert.True(t, opt.DisableMetrics)
	assert.Equal(t, reg, opt.MetricsRegisterer)
	assert.Equal(t, lc, opt.ListenConfig)
	assert.NotNil(t, opt.TransporterNewer)
	assert.Nil(t, opt.Registry)
	assert.Equal(t, info, opt.RegistryInfo)
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asyncweb.yaml")
	require.Nil(t, os.WriteFile(path, []byte("addr: \":9090\"\nsend_window: 64\n"), 0o644))

	opt := config.NewOptions([]config.Option{WithConfigFile(path), WithRealm("r")})
	assert.Equal(t, ":9090", opt.Addr)
	assert.Equal(t, 64, opt.SendWindow)
	assert.Equal(t, "r", opt.Realm)
	assert.Equal(t, "tcp", opt.Network)

	// 文件不存在时保持默认值
	opt = config.NewOptions([]config.Option{WithConfigFile(filepath.Join(t.TempDir(), "none.yaml"))})
	assert.Equal(t, ":80", opt.Addr)
}
