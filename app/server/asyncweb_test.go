package server

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/app/server/registry"
	"github.com/favbox/asyncweb/common/mock"
	"github.com/favbox/asyncweb/common/utils"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	registerDelay = 10 * time.Millisecond
}

// spin 在后台运行服务，返回 Spin 结束时关闭的通道。
func spin(t *testing.T, w *AsyncWeb) chan struct{} {
	done := make(chan struct{})
	go func() {
		w.Spin()
		close(done)
	}()
	require.Eventually(t, func() bool { return w.Addr() != nil }, time.Second, 5*time.Millisecond)
	return done
}

func get(t *testing.T, addr net.Addr, path string) string {
	conn, err := net.Dial("tcp", addr.String())
	require.Nil(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET " + path + " HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.Nil(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := io.ReadAll(conn)
	require.Nil(t, err)
	return string(got)
}

func TestSpinGracefulShutdown(t *testing.T) {
	mem := registry.NewMemory()
	w := New(
		WithHostPorts("127.0.0.1:0"),
		WithDisableMetrics(true),
		WithRegistry(mem, nil),
		WithExitWaitTime(time.Second),
	)
	w.On("/ping", consts.MethodGet, func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", "pong")
	})

	quit := make(chan struct{})
	w.SetCustomSignalWaiter(func(errCh chan error) error {
		select {
		case <-quit:
			return nil
		case err := <-errCh:
			return err
		}
	})
	done := spin(t, w)

	require.Eventually(t, func() bool {
		return len(mem.Lookup(registry.DefaultServiceName)) == 1
	}, time.Second, 5*time.Millisecond)
	info := mem.Lookup(registry.DefaultServiceName)[0]
	assert.Equal(t, registry.DefaultWeight, info.Weight)
	assert.Equal(t, "127.0.0.1:0", info.Addr.String())

	head, body := mock.SplitResponse(get(t, w.Addr(), "/ping"))
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "pong", body)

	close(quit)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("服务未退出")
	}
	assert.False(t, w.IsRunning())
	assert.Empty(t, mem.Lookup(registry.DefaultServiceName))
}

func TestSpinRegisterErrorExits(t *testing.T) {
	reg := &MockRegistry{
		RegisterFunc: func(*registry.Info) error { return errors.New("注册失败") },
	}
	info := &registry.Info{ServiceName: "svc"}
	w := New(WithHostPorts("127.0.0.1:0"), WithDisableMetrics(true), WithRegistry(reg, info))

	var got error
	w.SetCustomSignalWaiter(func(errCh chan error) error {
		got = <-errCh
		return got
	})
	done := spin(t, w)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("服务未退出")
	}
	assert.EqualError(t, got, "注册失败")
	// 立即退出不注销
	registered, deregistered := reg.Calls()
	assert.Equal(t, 1, registered)
	assert.Equal(t, 0, deregistered)
	assert.Equal(t, registry.DefaultWeight, info.Weight)
	assert.Equal(t, "svc", info.ServiceName)
}

func TestNoopRegistryAddsNoHook(t *testing.T) {
	w := New(WithDisableMetrics(true))
	w.initOnRunHooks(make(chan error, 1))
	assert.Empty(t, w.OnRun)
	assert.Nil(t, w.GetOptions().RegistryInfo)
}

func TestFillRegistryInfo(t *testing.T) {
	info := fillRegistryInfo(nil, "tcp", ":80")
	assert.Equal(t, registry.DefaultServiceName, info.ServiceName)
	assert.Equal(t, registry.DefaultWeight, info.Weight)
	assert.Equal(t, "tcp", info.Addr.Network())
	assert.Equal(t, utils.AdvertiseAddr(":80"), info.Addr.String())

	info = fillRegistryInfo(nil, "unix", "/tmp/a.sock")
	assert.Equal(t, "/tmp/a.sock", info.Addr.String())

	addr := registry.NewNetAddr("tcp", "10.0.0.1:80")
	info = fillRegistryInfo(&registry.Info{ServiceName: "a", Addr: addr, Weight: 3}, "tcp", ":80")
	assert.Equal(t, "a", info.ServiceName)
	assert.Equal(t, addr, info.Addr)
	assert.Equal(t, 3, info.Weight)
}

func TestDefaultRecovers(t *testing.T) {
	w := Default(WithDisableMetrics(true))
	w.On("/panic", consts.MethodGet, func(r *app.Request) {
		panic("boom")
	})
	c := mock.NewClient(0)
	c.Connect(w.Accept)
	c.Feed("GET /panic HTTP/1.1\r\n\r\n")
	require.True(t, c.Drain(100))
	assert.Equal(t, 500, mock.StatusCode(c.Output()))
}

func TestAddrBeforeRun(t *testing.T) {
	w := New(WithDisableMetrics(true))
	assert.Nil(t, w.Addr())
}
