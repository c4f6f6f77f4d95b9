package app

import (
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/favbox/asyncweb/common/compress"
	"github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/internal/stats"
	"github.com/favbox/asyncweb/network"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/auth"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/protocol/http1/req"
	"github.com/favbox/asyncweb/protocol/http1/resp"
)

var (
	_ network.Events = (*Request)(nil)
	_ req.Sink       = (*Request)(nil)
)

// Router 为请求选择处理器，由路由引擎实现。
type Router interface {
	// Route 应用改写规则并返回第一个匹配的处理器，未匹配时返回兜底处理器。
	Route(r *Request) Handler
	// NotFound 返回兜底处理器。
	NotFound() Handler
}

// Env 是请求运行所需的服务端环境，同一服务端的请求共享。
type Env struct {
	Router  Router
	Nonces  *auth.NonceStore
	Realm   string
	Parser  req.Options
	Metrics *stats.Metrics
}

// Request 是绑定到一个连接的请求，实现 network.Events。
//
// 每个连接只承载一个请求，响应结束后关闭连接。所有方法都在事件循环上调用。
type Request struct {
	protocol.Request

	client   network.Client
	env      *Env
	parser   *req.Parser
	handler  Handler
	response *resp.Response
	start    time.Time

	// 100 Continue 临时应答中未写出与未确认的字节
	prelude      []byte
	preludeAcked int
	preludeSent  int

	closing      bool
	onDisconnect func()

	// TempObject 供处理器在回调之间保存任意对象。
	TempObject any
	// TempFile 是处理器打开的临时文件，断开时关闭。
	TempFile io.Closer

	keys map[string]any
}

// NewRequest 创建绑定到 c 的请求。
func NewRequest(c network.Client, env *Env) *Request {
	r := &Request{
		client: c,
		env:    env,
		start:  time.Now(),
	}
	r.parser = req.NewParser(&r.Request, r, env.Parser)
	env.Metrics.ConnOpened()
	return r
}

// Client 返回请求所在的连接。
func (r *Request) Client() network.Client { return r.client }

// Handler 返回选中的处理器，头部解析完成前为空。
func (r *Request) Handler() Handler { return r.handler }

// Response 返回已发送的响应。
func (r *Request) Response() *resp.Response { return r.response }

// Responded 判断是否已发送响应。
func (r *Request) Responded() bool { return r.response != nil }

// ParserState 返回解析器的状态。
func (r *Request) ParserState() req.State { return r.parser.State() }

// SetOnDisconnect 设置连接断开时的回调。
func (r *Request) SetOnDisconnect(fn func()) { r.onDisconnect = fn }

// Set 保存中间件与回调之间传递的键值。
func (r *Request) Set(key string, value any) {
	if r.keys == nil {
		r.keys = make(map[string]any)
	}
	r.keys[key] = value
}

// Get 返回 Set 保存的值。
func (r *Request) Get(key string) (value any, exists bool) {
	value, exists = r.keys[key]
	return
}

// 连接事件

func (r *Request) OnData(data []byte) {
	if err := r.parser.Feed(data); err != nil {
		r.parseFailed(err)
	}
}

func (r *Request) parseFailed(err error) {
	code := errors.StatusCode(err)
	hlog.SystemLogger().Debugf(hlog.ParseErrorFormat, r.client.RemoteAddr(), err.Error())
	r.env.Metrics.ParseError(code)
	if r.response != nil {
		return
	}
	if code == 0 {
		r.close()
		return
	}
	r.Send(resp.NewStatus(code))
}

func (r *Request) OnAck(n int, _ time.Duration) {
	if k := r.preludeSent - r.preludeAcked; k > 0 {
		if k > n {
			k = n
		}
		r.preludeAcked += k
		n -= k
	}
	r.flushPrelude()
	if r.response == nil {
		return
	}
	if !r.response.Started() {
		r.respond()
	} else if n > 0 {
		r.response.Ack(r.client, n)
	} else {
		r.response.Poll(r.client)
	}
	r.checkFinished()
}

func (r *Request) OnPoll() {
	r.flushPrelude()
	if r.response == nil {
		return
	}
	if !r.response.Started() {
		r.respond()
	} else {
		r.response.Poll(r.client)
	}
	r.checkFinished()
}

func (r *Request) OnError(err error) {
	hlog.SystemLogger().Warnf(hlog.TransportErrorFormat, r.client.RemoteAddr(), err)
	if r.response != nil {
		r.response.Fail(err)
	}
	r.close()
}

func (r *Request) OnTimeout() {
	hlog.SystemLogger().Debugf("连接超时：远端=%s", r.client.RemoteAddr())
	if r.response != nil {
		r.response.Fail(errors.ErrTimeout)
	}
	r.close()
}

func (r *Request) OnDisconnect() {
	if r.onDisconnect != nil {
		r.onDisconnect()
	}
	if r.TempFile != nil {
		_ = r.TempFile.Close()
		r.TempFile = nil
	}
	code, state, acked := 0, "NONE", 0
	if r.response != nil {
		code, state, acked = r.response.Code(), r.response.State().String(), r.response.AckedLength()
		r.response.Release()
	}
	r.env.Metrics.RequestDone(r.MethodString(), code, state, acked, time.Since(r.start))
}

// 解析事件

func (r *Request) OnHeaders() (parseBody, responded bool) {
	h := r.env.Router.Route(r)
	r.handler = h
	if user, pass, digest := h.Credentials(); user != "" && pass != "" {
		if !r.Authenticate(user, pass, "", false) {
			r.RequestAuthentication("", digest)
			return false, true
		}
	}
	return !h.IsTrivial(), r.response != nil
}

func (r *Request) OnContinue() {
	r.prelude = append(r.prelude[:0], consts.ContinueResponse...)
	r.flushPrelude()
}

func (r *Request) OnBody(data []byte, index, total int) {
	r.handler.HandleBody(r, data, index, total)
}

func (r *Request) OnUpload(filename string, index int, data []byte, final bool) {
	r.handler.HandleUpload(r, filename, index, data, final)
}

func (r *Request) OnComplete() {
	if r.response != nil {
		return
	}
	r.handler.HandleRequest(r)
	if r.response == nil {
		if nf := r.env.Router.NotFound(); nf != r.handler {
			nf.HandleRequest(r)
		}
	}
	if r.response == nil {
		r.SendStatus(consts.StatusNotFound)
	}
}

func (r *Request) flushPrelude() {
	if len(r.prelude) == 0 {
		return
	}
	n := r.client.Write(r.prelude)
	r.preludeSent += n
	r.prelude = r.prelude[n:]
}

// preludeDone 判断临时应答是否已全部写出。
func (r *Request) preludeDone() bool { return len(r.prelude) == 0 }

func (r *Request) respond() {
	if !r.preludeDone() {
		return
	}
	r.response.Respond(r.client, r.Version(), r.Method() == consts.MethodHead)
}

func (r *Request) checkFinished() {
	if r.response != nil && r.response.Finished() {
		r.close()
	}
}

func (r *Request) close() {
	if r.closing {
		return
	}
	r.closing = true
	_ = r.client.Close()
}

// 发送响应

// Send 发送响应。每个请求只接受第一个响应，无效的响应以 500 代替。
func (r *Request) Send(res *resp.Response) {
	if res == nil {
		return
	}
	if r.response != nil {
		hlog.SystemLogger().Warnf("请求 %s 已有响应，忽略状态码为 %d 的响应", r.URL(), res.Code())
		res.Release()
		return
	}
	if !res.Valid() {
		res.Release()
		res = resp.NewStatus(consts.StatusInternalServerError)
	}
	r.response = res
	r.respond()
	r.checkFinished()
}

// SendStatus 发送只有状态行的响应。
func (r *Request) SendStatus(code int) { r.Send(resp.NewStatus(code)) }

// SendString 发送字符串正文。
func (r *Request) SendString(code int, contentType, body string) {
	r.Send(resp.NewString(code, contentType, body))
}

// SendBytes 发送内存正文。
func (r *Request) SendBytes(code int, contentType string, body []byte) {
	r.Send(resp.New(code, contentType, body))
}

// SendFile 发送文件，文件不存在时尝试预压缩的 .gz 文件。
func (r *Request) SendFile(fsys fs.FS, name, contentType string, download bool) {
	r.Send(resp.NewFile(fsys, name, contentType, download))
}

// SendReader 发送读取 rd 得到的正文，length<0 表示长度未知。
func (r *Request) SendReader(code int, contentType string, rd io.Reader, length int) {
	r.Send(resp.NewReader(code, contentType, rd, length))
}

// SendFiller 发送由填充回调产出的正文。
func (r *Request) SendFiller(code int, contentType string, length int, fn resp.Filler) {
	r.Send(resp.NewFiller(code, contentType, length, fn))
}

// SendChunked 发送长度未知的填充正文。
func (r *Request) SendChunked(code int, contentType string, fn resp.Filler) {
	r.Send(resp.NewChunked(code, contentType, fn))
}

// SendJSON 发送 JSON 正文。
func (r *Request) SendJSON(code int, v any) { r.Send(resp.NewJSON(code, v)) }

// SendCompressed 按 Accept-Encoding 协商压缩正文，无可用编码时原样发送。
// 处理器需先通过 AddInterestingHeader 保留 Accept-Encoding 标头。
func (r *Request) SendCompressed(code int, contentType string, body []byte) {
	if enc, ok := compress.Negotiate(r.HeaderList().Value(consts.HeaderAcceptEncoding)); ok {
		r.Send(resp.NewCompressed(code, contentType, body, enc))
		return
	}
	r.SendBytes(code, contentType, body)
}

// Redirect 发送 302 重定向。
func (r *Request) Redirect(url string) { r.Send(resp.NewRedirect(url)) }

// BeginResponse 创建字符串正文的响应，添加标头后再调用 Send。
func (r *Request) BeginResponse(code int, contentType, body string) *resp.Response {
	return resp.NewString(code, contentType, body)
}

// BeginResponseStream 创建响应流，写入完成后以 Send(stream.Response) 发送。
func (r *Request) BeginResponseStream(contentType string) *resp.Stream {
	return resp.NewStream(consts.StatusOK, contentType)
}

// 认证

// Authenticate 按客户端提供的方案校验凭证。realm 为空时 Digest 不校验域。
func (r *Request) Authenticate(user, pass, realm string, passwordIsHash bool) bool {
	payload := r.Authorization()
	if payload == "" {
		return false
	}
	if r.IsDigest() {
		return r.env.Nonces.Check(payload, r.MethodString(), user, pass, realm, passwordIsHash)
	}
	return auth.CheckBasic(payload, user, pass, passwordIsHash)
}

// AuthenticateHash 以预计算的凭证校验。Basic 时 hash 为 base64(user:pass)，
// Digest 时 hash 为 "user:realm:HA1"。
func (r *Request) AuthenticateHash(hash string) bool {
	payload := r.Authorization()
	if payload == "" || hash == "" {
		return false
	}
	if !r.IsDigest() {
		return auth.CheckBasic(payload, "", hash, true)
	}
	user, rest, ok := strings.Cut(hash, ":")
	if !ok || user == "" {
		return false
	}
	realm, ha1, ok := strings.Cut(rest, ":")
	if !ok || realm == "" {
		return false
	}
	return r.env.Nonces.Check(payload, r.MethodString(), user, ha1, realm, true)
}

// RequestAuthentication 发送 401 质询。realm 为空时使用服务端的默认域。
func (r *Request) RequestAuthentication(realm string, digest bool) {
	if realm == "" {
		realm = r.env.Realm
	}
	res := resp.NewStatus(consts.StatusUnauthorized)
	if digest {
		res.AddHeader(consts.HeaderWWWAuthenticate, r.env.Nonces.Challenge(realm))
	} else {
		res.AddHeader(consts.HeaderWWWAuthenticate, auth.BasicChallenge(realm))
	}
	r.Send(res)
}
