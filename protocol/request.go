package protocol

import (
	"strings"

	"github.com/favbox/asyncweb/protocol/consts"
)

// ConnType 是客户端请求的连接类型。
type ConnType uint8

const (
	ConnTypeDefault ConnType = iota
	ConnTypeHTTP
	ConnTypeWebSocket
	ConnTypeEventSource
)

func (c ConnType) String() string {
	switch c {
	case ConnTypeDefault:
		return "RCT_DEFAULT"
	case ConnTypeHTTP:
		return "RCT_HTTP"
	case ConnTypeWebSocket:
		return "RCT_WS"
	case ConnTypeEventSource:
		return "RCT_EVENT"
	}
	return "UNKNOWN"
}

// Request 保存解析出的请求数据。
//
// 解析器通过 Set 系列方法写入，处理器通过只读访问器读取。
type Request struct {
	method        consts.Method
	versionMajor  int
	versionMinor  int
	url           string
	host          string
	contentType   string
	boundary      string
	contentLength int
	parsedLength  int
	authorization string
	connType      ConnType

	isMultipart    bool
	isPlainPost    bool
	isDigest       bool
	expectContinue bool

	headers     HeaderList
	params      ParamList
	pathArgs    []string
	interesting []string
}

// Reset 清空请求数据以便复用。
func (r *Request) Reset() {
	headers, params := r.headers, r.params
	headers.Reset()
	params.Reset()
	*r = Request{
		headers:     headers,
		params:      params,
		pathArgs:    r.pathArgs[:0],
		interesting: r.interesting[:0],
	}
}

func (r *Request) Method() consts.Method { return r.method }

// MethodString 返回请求方法的名称。
func (r *Request) MethodString() string { return r.method.String() }

// Version 返回 HTTP 次版本号，HTTP/1.1 返回 1。
func (r *Request) Version() int { return r.versionMinor }

// VersionMajor 返回 HTTP 主版本号。
func (r *Request) VersionMajor() int { return r.versionMajor }

// URL 返回解码后的请求路径（经改写后的路径）。
func (r *Request) URL() string { return r.url }

func (r *Request) Host() string        { return r.host }
func (r *Request) ContentType() string { return r.contentType }

// Boundary 返回多部分表单的边界，不含前导的 "--"。
func (r *Request) Boundary() string { return r.boundary }

func (r *Request) ContentLength() int { return r.contentLength }

// ParsedLength 返回已消费的正文字节数，始终不大于 ContentLength。
func (r *Request) ParsedLength() int { return r.parsedLength }

// Authorization 返回认证标头中方案之后的载荷。
func (r *Request) Authorization() string { return r.authorization }

func (r *Request) IsDigest() bool       { return r.isDigest }
func (r *Request) IsMultipart() bool    { return r.isMultipart }
func (r *Request) IsPlainPost() bool    { return r.isPlainPost }
func (r *Request) ExpectContinue() bool { return r.expectContinue }
func (r *Request) ConnType() ConnType   { return r.connType }

// ConnTypeString 返回连接类型的名称。
func (r *Request) ConnTypeString() string { return r.connType.String() }

// IsExpectedConnType 判断连接类型是否为给定类型之一。
func (r *Request) IsExpectedConnType(types ...ConnType) bool {
	for _, t := range types {
		if r.connType == t {
			return true
		}
	}
	return false
}

// 标头访问器

// Headers 返回标头数量。
func (r *Request) Headers() int { return r.headers.Len() }

// HeaderList 返回标头列表。
func (r *Request) HeaderList() *HeaderList { return &r.headers }

func (r *Request) HasHeader(name string) bool { return r.headers.Has(name) }

// Header 返回第一个名称匹配的标头，不区分大小写。
func (r *Request) Header(name string) *Header { return r.headers.Get(name) }

func (r *Request) HeaderAt(i int) *Header { return r.headers.At(i) }

// HeaderName 返回第 i 个标头的名称，越界返回空串。
func (r *Request) HeaderName(i int) string {
	if h := r.headers.At(i); h != nil {
		return h.Name
	}
	return ""
}

// 参数访问器

// Params 返回参数数量。
func (r *Request) Params() int { return r.params.Len() }

// ParamList 返回参数列表。
func (r *Request) ParamList() *ParamList { return &r.params }

func (r *Request) HasParam(name string, isForm, isFile bool) bool {
	return r.params.Get(name, isForm, isFile) != nil
}

// GetParam 返回名称与类型均匹配的参数。
func (r *Request) GetParam(name string, isForm, isFile bool) *Param {
	return r.params.Get(name, isForm, isFile)
}

func (r *Request) GetParamAt(i int) *Param { return r.params.At(i) }

// HasArg 判断是否存在指定名称的参数，不区分参数类型。
func (r *Request) HasArg(name string) bool { return r.params.Lookup(name) != nil }

// Arg 返回第一个名称匹配的参数值，不存在返回空串。
func (r *Request) Arg(name string) string {
	if p := r.params.Lookup(name); p != nil {
		return p.Value
	}
	return ""
}

func (r *Request) ArgAt(i int) string {
	if p := r.params.At(i); p != nil {
		return p.Value
	}
	return ""
}

func (r *Request) ArgName(i int) string {
	if p := r.params.At(i); p != nil {
		return p.Name
	}
	return ""
}

// PathArg 返回第 i 个路由捕获，越界返回空串。
func (r *Request) PathArg(i int) string {
	if i < 0 || i >= len(r.pathArgs) {
		return ""
	}
	return r.pathArgs[i]
}

// PathArgs 返回路由捕获的数量。
func (r *Request) PathArgs() int { return len(r.pathArgs) }

// 关注标头

// AddInterestingHeader 声明需要在头部解析结束后保留的标头，"ANY" 表示全部保留。
func (r *Request) AddInterestingHeader(name string) {
	for _, n := range r.interesting {
		if strings.EqualFold(n, name) {
			return
		}
	}
	r.interesting = append(r.interesting, name)
}

func (r *Request) isInteresting(name string) bool {
	if strings.EqualFold(name, consts.HeaderCookie) {
		return true
	}
	for _, n := range r.interesting {
		if n == consts.InterestingAny || strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// PruneHeaders 删除未被声明关注的标头，Cookie 始终保留。
func (r *Request) PruneHeaders() {
	r.headers.Retain(func(h *Header) bool {
		return r.isInteresting(h.Name)
	})
}

// 以下方法供解析器与路由器写入

func (r *Request) SetMethod(m consts.Method) { r.method = m }

func (r *Request) SetVersion(major, minor int) {
	r.versionMajor = major
	r.versionMinor = minor
}

func (r *Request) SetURL(url string)            { r.url = url }
func (r *Request) SetHost(host string)          { r.host = host }
func (r *Request) SetContentType(ct string)     { r.contentType = ct }
func (r *Request) SetBoundary(b string)         { r.boundary = b }
func (r *Request) SetContentLength(n int)       { r.contentLength = n }
func (r *Request) SetMultipart(b bool)          { r.isMultipart = b }
func (r *Request) SetPlainPost(b bool)          { r.isPlainPost = b }
func (r *Request) SetExpectContinue(b bool)     { r.expectContinue = b }
func (r *Request) SetConnType(t ConnType)       { r.connType = t }
func (r *Request) AddHeader(name, value string) { r.headers.Add(name, value) }
func (r *Request) AddParam(p Param)             { r.params.Add(p) }
func (r *Request) AddPathArg(s string)          { r.pathArgs = append(r.pathArgs, s) }

// ResetPathArgs 清空路由捕获，路由器在每次尝试匹配前调用。
func (r *Request) ResetPathArgs() { r.pathArgs = r.pathArgs[:0] }

// SetAuthorization 记录认证载荷及其方案。
func (r *Request) SetAuthorization(payload string, digest bool) {
	r.authorization = payload
	r.isDigest = digest
}

// AddParsedLength 累加已消费的正文字节数。
func (r *Request) AddParsedLength(n int) { r.parsedLength += n }
