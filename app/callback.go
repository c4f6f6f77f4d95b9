package app

import (
	"strings"

	"github.com/favbox/asyncweb/protocol/consts"
)

// CallbackHandler 以回调函数处理匹配 URI 与方法的请求。
//
// URI 的形式：
//   - "/a" 匹配 /a 及 /a/ 下的所有路径；
//   - "/a*" 匹配以 /a 开头的路径；
//   - "/*.ext" 匹配以 .ext 结尾的路径；
//   - "^/a/([0-9]+)$" 为正则，分组捕获成为路由捕获（以 noregex 构建时不可用）；
//   - 空串匹配所有路径。
type CallbackHandler struct {
	HandlerBase
	uri       string
	method    consts.Method
	pattern   *pattern
	onRequest RequestFunc
	onUpload  UploadFunc
	onBody    BodyFunc
}

// NewCallbackHandler 创建回调处理器。
func NewCallbackHandler(uri string, method consts.Method, fn RequestFunc) *CallbackHandler {
	h := &CallbackHandler{method: method, onRequest: fn}
	h.SetURI(uri)
	return h
}

// SetURI 设置匹配的 URI。
func (h *CallbackHandler) SetURI(uri string) *CallbackHandler {
	h.uri = uri
	h.pattern = compilePattern(uri)
	return h
}

// URI 返回匹配的 URI。
func (h *CallbackHandler) URI() string { return h.uri }

// SetMethod 设置匹配的方法掩码。
func (h *CallbackHandler) SetMethod(m consts.Method) *CallbackHandler {
	h.method = m
	return h
}

// SetRequest 设置请求回调。
func (h *CallbackHandler) SetRequest(fn RequestFunc) *CallbackHandler {
	h.onRequest = fn
	return h
}

// SetUpload 设置文件上传回调。
func (h *CallbackHandler) SetUpload(fn UploadFunc) *CallbackHandler {
	h.onUpload = fn
	return h
}

// SetBody 设置正文回调。
func (h *CallbackHandler) SetBody(fn BodyFunc) *CallbackHandler {
	h.onBody = fn
	return h
}

func (h *CallbackHandler) CanHandle(r *Request) bool {
	if h.onRequest == nil || !h.method.Has(r.Method()) {
		return false
	}
	if !h.match(r) {
		return false
	}
	r.AddInterestingHeader(consts.InterestingAny)
	return true
}

func (h *CallbackHandler) match(r *Request) bool {
	url := r.URL()
	switch {
	case h.pattern != nil:
		return h.pattern.match(r)
	case h.uri == "":
		return true
	case strings.HasPrefix(h.uri, "/*."):
		return strings.HasSuffix(url, h.uri[strings.LastIndexByte(h.uri, '.'):])
	case strings.HasSuffix(h.uri, "*"):
		return strings.HasPrefix(url, h.uri[:len(h.uri)-1])
	}
	return url == h.uri || strings.HasPrefix(url, h.uri+"/")
}

func (h *CallbackHandler) HandleRequest(r *Request) {
	if h.onRequest != nil {
		h.onRequest(r)
	}
}

func (h *CallbackHandler) HandleBody(r *Request, data []byte, index, total int) {
	if h.onBody != nil {
		h.onBody(r, data, index, total)
	}
}

func (h *CallbackHandler) HandleUpload(r *Request, filename string, index int, data []byte, final bool) {
	if h.onUpload != nil {
		h.onUpload(r, filename, index, data, final)
	}
}

// IsTrivial 只有未设置任何回调时才丢弃正文，请求回调需要读取表单参数。
func (h *CallbackHandler) IsTrivial() bool {
	return h.onRequest == nil && h.onUpload == nil && h.onBody == nil
}
