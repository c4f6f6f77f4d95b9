package registry

import (
	"net"
	"sync"

	"github.com/favbox/asyncweb/common/errors"
)

const (
	DefaultWeight      = 10
	DefaultServiceName = "asyncweb"
)

// NoopRegistry 无操作的服务注册实现。
var NoopRegistry Registry = &noopRegistry{}

var errNilInfo = errors.NewPublic("服务注册信息为空")

// Registry 定义了服务注册所需实现的接口。
type Registry interface {
	Register(info *Info) error
	Deregister(info *Info) error
}

// Info 用于服务注册的信息。
type Info struct {
	ServiceName string            // 未设置时使用 DefaultServiceName
	Addr        net.Addr          // 未设置时使用监听地址
	Weight      int               // 未设置时使用 DefaultWeight
	Tags        map[string]string // 其他扩展信息
}

// 无操作的服务注册实现。
type noopRegistry struct{}

func (n noopRegistry) Register(*Info) error   { return nil }
func (n noopRegistry) Deregister(*Info) error { return nil }

// Memory 是进程内的注册表，按服务名记录实例，适用于单机部署与测试。
type Memory struct {
	mu       sync.RWMutex
	services map[string][]*Info
}

// NewMemory 创建进程内注册表。
func NewMemory() *Memory {
	return &Memory{services: make(map[string][]*Info)}
}

// Register 登记实例，同名同地址的实例会被替换。
func (m *Memory) Register(info *Info) error {
	if info == nil {
		return errNilInfo
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.services[info.ServiceName]
	for i, v := range list {
		if sameAddr(v.Addr, info.Addr) {
			list[i] = info
			return nil
		}
	}
	m.services[info.ServiceName] = append(list, info)
	return nil
}

// Deregister 移除实例，实例不存在时不报错。
func (m *Memory) Deregister(info *Info) error {
	if info == nil {
		return errNilInfo
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.services[info.ServiceName]
	for i, v := range list {
		if sameAddr(v.Addr, info.Addr) {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.services, info.ServiceName)
	} else {
		m.services[info.ServiceName] = list
	}
	return nil
}

// Lookup 返回服务的全部实例。
func (m *Memory) Lookup(serviceName string) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.services[serviceName]
	out := make([]Info, 0, len(list))
	for _, v := range list {
		out = append(out, *v)
	}
	return out
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Network() == b.Network() && a.String() == b.String()
}

type netAddr struct {
	network string
	address string
}

func (a *netAddr) Network() string { return a.network }
func (a *netAddr) String() string  { return a.address }

// NewNetAddr 以网络类型与地址字符串构造 net.Addr。
func NewNetAddr(network, address string) net.Addr {
	return &netAddr{network: network, address: address}
}
