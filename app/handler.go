package app

import "github.com/favbox/asyncweb/protocol/consts"

// Filter 决定处理器或改写规则是否适用于请求。
type Filter func(r *Request) bool

// Handler 是请求处理器。
//
// 路由器按注册顺序选中第一个 Filter 与 CanHandle 均返回 true 的处理器。
// 正文与上传回调按字节偏移严格有序地调用，HandleRequest 在请求解析完成后只调用一次。
type Handler interface {
	// Filter 在 CanHandle 之前调用。
	Filter(r *Request) bool
	// CanHandle 匹配请求，除声明关注标头和路由捕获外不应有副作用。
	CanHandle(r *Request) bool
	// HandleRequest 产生响应。
	HandleRequest(r *Request)
	// HandleBody 接收不透明正文，index 为累计偏移，data 仅在调用期间有效。
	HandleBody(r *Request, data []byte, index, total int)
	// HandleUpload 接收多部分表单的文件内容，final 只在文件结束时出现一次。
	HandleUpload(r *Request, filename string, index int, data []byte, final bool)
	// IsTrivial 为 true 时解析器丢弃正文。
	IsTrivial() bool
	// Credentials 返回访问处理器所需的凭证，user 或 pass 为空表示无需认证。
	Credentials() (user, pass string, digest bool)
}

// HandlerBase 是可嵌入的处理器基础能力：过滤器与认证凭证，其余方法均为空实现。
type HandlerBase struct {
	filter Filter
	user   string
	pass   string
	basic  bool
}

// SetFilter 设置过滤器。
func (b *HandlerBase) SetFilter(f Filter) { b.filter = f }

// SetAuthentication 设置访问凭证，认证失败时以 Digest 方式质询。
func (b *HandlerBase) SetAuthentication(user, pass string) {
	b.user, b.pass, b.basic = user, pass, false
}

// SetBasicAuthentication 设置访问凭证，认证失败时以 Basic 方式质询。
func (b *HandlerBase) SetBasicAuthentication(user, pass string) {
	b.user, b.pass, b.basic = user, pass, true
}

func (b *HandlerBase) Filter(r *Request) bool {
	return b.filter == nil || b.filter(r)
}

func (b *HandlerBase) Credentials() (user, pass string, digest bool) {
	return b.user, b.pass, !b.basic
}

func (b *HandlerBase) CanHandle(*Request) bool                          { return false }
func (b *HandlerBase) HandleRequest(*Request)                           {}
func (b *HandlerBase) HandleBody(*Request, []byte, int, int)            {}
func (b *HandlerBase) HandleUpload(*Request, string, int, []byte, bool) {}
func (b *HandlerBase) IsTrivial() bool                                  { return true }

// RequestFunc 处理请求。
type RequestFunc func(r *Request)

// Middleware 包装请求回调，如恐慌恢复与认证。
type Middleware func(next RequestFunc) RequestFunc

// BodyFunc 接收不透明正文。
type BodyFunc func(r *Request, data []byte, index, total int)

// UploadFunc 接收上传的文件内容。
type UploadFunc func(r *Request, filename string, index int, data []byte, final bool)

// CatchAllHandler 是未匹配任何处理器时使用的兜底处理器，默认应答 404。
type CatchAllHandler struct {
	HandlerBase
	onRequest RequestFunc
	onUpload  UploadFunc
	onBody    BodyFunc
}

// SetRequest 设置请求回调，为空时应答 404。
func (h *CatchAllHandler) SetRequest(fn RequestFunc) { h.onRequest = fn }

// SetUpload 设置文件上传回调。
func (h *CatchAllHandler) SetUpload(fn UploadFunc) { h.onUpload = fn }

// SetBody 设置正文回调。
func (h *CatchAllHandler) SetBody(fn BodyFunc) { h.onBody = fn }

// Reset 清除全部回调。
func (h *CatchAllHandler) Reset() {
	h.onRequest, h.onUpload, h.onBody = nil, nil, nil
}

func (h *CatchAllHandler) CanHandle(*Request) bool { return true }

func (h *CatchAllHandler) HandleRequest(r *Request) {
	if h.onRequest != nil {
		h.onRequest(r)
		return
	}
	r.SendStatus(consts.StatusNotFound)
}

func (h *CatchAllHandler) HandleBody(r *Request, data []byte, index, total int) {
	if h.onBody != nil {
		h.onBody(r, data, index, total)
	}
}

func (h *CatchAllHandler) HandleUpload(r *Request, filename string, index int, data []byte, final bool) {
	if h.onUpload != nil {
		h.onUpload(r, filename, index, data, final)
	}
}

func (h *CatchAllHandler) IsTrivial() bool {
	return h.onRequest == nil && h.onUpload == nil && h.onBody == nil
}
