package protocol

import (
	"sync"

	"github.com/favbox/asyncweb/common/hlog"
)

// DefaultHeadersRegistry 是进程级的默认标头集合，追加在每个响应的头部末尾。
//
// 只应在服务启动前修改，Freeze 之后的修改会被拒绝。
type DefaultHeadersRegistry struct {
	mu     sync.RWMutex
	list   HeaderList
	frozen bool
}

var (
	defaultHeaders     *DefaultHeadersRegistry
	defaultHeadersOnce sync.Once
)

// DefaultHeaders 返回进程级的默认标头集合，首次调用时创建。
func DefaultHeaders() *DefaultHeadersRegistry {
	defaultHeadersOnce.Do(func() {
		defaultHeaders = &DefaultHeadersRegistry{}
	})
	return defaultHeaders
}

// Add 添加一个默认标头，冻结后返回 false。
func (r *DefaultHeadersRegistry) Add(name, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		hlog.SystemLogger().Warnf("服务已启动，忽略默认标头 %s", name)
		return false
	}
	r.list.Add(name, value)
	return true
}

// VisitAll 按加入顺序访问每个默认标头。
func (r *DefaultHeadersRegistry) VisitAll(f func(name, value string)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.list.VisitAll(f)
}

// AppendBytes 以线格式追加全部默认标头。
func (r *DefaultHeadersRegistry) AppendBytes(dst []byte) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list.AppendBytes(dst)
}

// Len 返回默认标头数量。
func (r *DefaultHeadersRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list.Len()
}

// Freeze 冻结集合，由 Engine.Begin 调用。
func (r *DefaultHeadersRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Unfreeze 解除冻结，由 Engine.End 调用。
func (r *DefaultHeadersRegistry) Unfreeze() {
	r.mu.Lock()
	r.frozen = false
	r.mu.Unlock()
}

// Reset 清空并解除冻结。
func (r *DefaultHeadersRegistry) Reset() {
	r.mu.Lock()
	r.list.Reset()
	r.frozen = false
	r.mu.Unlock()
}
