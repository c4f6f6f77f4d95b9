package server

import (
	"sync/atomic"

	"github.com/favbox/asyncweb/app/server/registry"
)

var _ registry.Registry = (*MockRegistry)(nil)

// MockRegistry 以回调模拟 registry.Registry，并记录调用次数。
type MockRegistry struct {
	RegisterFunc   func(info *registry.Info) error
	DeregisterFunc func(info *registry.Info) error

	registered   int32
	deregistered int32
}

func (m *MockRegistry) Register(info *registry.Info) error {
	atomic.AddInt32(&m.registered, 1)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(info)
	}
	return nil
}

func (m *MockRegistry) Deregister(info *registry.Info) error {
	atomic.AddInt32(&m.deregistered, 1)
	if m.DeregisterFunc != nil {
		return m.DeregisterFunc(info)
	}
	return nil
}

// Calls 返回注册与注销的调用次数。
func (m *MockRegistry) Calls() (register, deregister int) {
	return int(atomic.LoadInt32(&m.registered)), int(atomic.LoadInt32(&m.deregistered))
}
