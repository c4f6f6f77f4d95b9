package app

import (
	"strings"

	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/protocol"
)

// Rewrite 在路由前把 from 改写为 to，to 中的查询串并入请求参数。
type Rewrite struct {
	from   string
	toURL  string
	params string
	filter Filter
}

// NewRewrite 创建改写规则。
func NewRewrite(from, to string) *Rewrite {
	toURL, params, _ := strings.Cut(to, "?")
	return &Rewrite{from: from, toURL: toURL, params: params}
}

// SetFilter 设置过滤器。
func (rw *Rewrite) SetFilter(f Filter) *Rewrite {
	rw.filter = f
	return rw
}

func (rw *Rewrite) From() string   { return rw.from }
func (rw *Rewrite) ToURL() string  { return rw.toURL }
func (rw *Rewrite) Params() string { return rw.params }

// Match 判断规则是否适用于请求。
func (rw *Rewrite) Match(r *Request) bool {
	if rw.from != r.URL() {
		return false
	}
	return rw.filter == nil || rw.filter(r)
}

// Apply 改写请求路径并追加查询参数。
func (rw *Rewrite) Apply(r *Request) {
	r.SetURL(rw.toURL)
	if rw.params == "" {
		return
	}
	if err := protocol.ParseQuery(rw.params, false, r.AddParam); err != protocol.URLDecodeNone {
		hlog.SystemLogger().Warnf("改写规则 %s 的查询串解码失败：%s", rw.from, err)
	}
}
