package recovery

import (
	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/protocol/consts"
)

// 表示一个恐慌恢复的自定义选项结构体。
type options struct {
	// 恐慌恢复处理器。
	recoveryHandler func(r *app.Request, err any, stack []byte)
}

// Option 自定义选项的应用函数。
type Option func(o *options)

// 默认的恐慌恢复处理器：记录堆栈并应答 500，已有响应时只记录。
func defaultRecoveryHandler(r *app.Request, err any, stack []byte) {
	hlog.SystemLogger().Errorf("[恐慌恢复] 路径=%s 恐慌=%v\n堆栈=%s", r.URL(), err, stack)
	if !r.Responded() {
		r.SendStatus(consts.StatusInternalServerError)
	}
}

// 创建一个自定义恐慌恢复的结构，并应用自定义选项。
func newOptions(opts ...Option) *options {
	cfg := &options{recoveryHandler: defaultRecoveryHandler}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithRecoveryHandler 自定义恐慌恢复处理器。
func WithRecoveryHandler(f func(r *app.Request, err any, stack []byte)) Option {
	return func(o *options) {
		o.recoveryHandler = f
	}
}
