// Package req 实现按字节推送的 HTTP/1.x 请求解析器。
//
// 解析器不持有完整的请求头，只用一个带软上限的行累加器；
// 正文按类型分发给表单分词器、多部分解析器或处理器的正文回调。
package req

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/internal/bytesconv"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/consts"
	"golang.org/x/net/http/httpguts"
)

// State 是解析器的状态。
type State uint8

const (
	StateStart State = iota
	StateHeaders
	StateBodyPlain
	StateBodyMultipart
	StateBodyOpaque
	StateComplete
	StateFailed
)

var stateNames = [...]string{"START", "HEADERS", "BODY_PLAIN", "BODY_MULTIPART", "BODY_OPAQUE", "COMPLETE", "FAILED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

const (
	defaultMaxLineSize  = 1460
	defaultMaxFieldSize = 4 * 1024
)

// Sink 接收解析事件，由连接绑定层实现。
type Sink interface {
	// OnHeaders 在头部结束时调用，负责路由与认证。
	// parseBody 表示处理器需要观察正文；responded 表示已产生响应（如 401）。
	OnHeaders() (parseBody, responded bool)
	// OnContinue 在需要发送 100 Continue 时调用。
	OnContinue()
	// OnBody 按序交付不透明正文，index 为累计偏移。data 仅在调用期间有效。
	OnBody(data []byte, index, total int)
	// OnUpload 按序交付多部分文件内容，final 在结束定界符确认时为 true 且只出现一次。
	OnUpload(filename string, index int, data []byte, final bool)
	// OnComplete 在请求完整解析后调用一次。
	OnComplete()
}

// Options 是解析器的限制项，零值使用默认限制。
type Options struct {
	MaxLineSize  int
	MaxFieldSize int
}

// 正文的处理方式
type bodyMode uint8

const (
	bodyDiscard bodyMode = iota
	bodySniff            // text/plain 待判定是否为表单
	bodyForm
	bodyMultipart
	bodyOpaque
)

// Parser 是请求解析状态机，可接受任意分片的输入。
type Parser struct {
	req  *protocol.Request
	sink Sink
	opts Options

	state State
	err   error
	line  []byte

	mode  bodyMode
	sniff []byte
	form  *protocol.FormTokenizer
	mp    *Multipart

	// WebSocket 升级所需的三个标头
	upgradeWS   bool
	connUpgrade bool
	wsKey       bool
	sawLength   bool
}

// NewParser 创建绑定到 r 的解析器。
func NewParser(r *protocol.Request, sink Sink, opts Options) *Parser {
	if opts.MaxLineSize <= 0 {
		opts.MaxLineSize = defaultMaxLineSize
	}
	if opts.MaxFieldSize <= 0 {
		opts.MaxFieldSize = defaultMaxFieldSize
	}
	return &Parser{req: r, sink: sink, opts: opts}
}

// State 返回当前状态。
func (p *Parser) State() State { return p.state }

// Err 返回导致失败的错误。
func (p *Parser) Err() error { return p.err }

// Feed 喂入一段字节。完成后到达的字节被忽略；失败后返回首个错误。
func (p *Parser) Feed(data []byte) error {
	for len(data) > 0 {
		switch p.state {
		case StateComplete:
			return nil
		case StateFailed:
			return p.err
		case StateStart, StateHeaders:
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				return p.fail(p.appendLine(data))
			}
			if err := p.appendLine(data[:i]); err != nil {
				return p.fail(err)
			}
			data = data[i+1:]
			line := p.line
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			err := p.handleLine(line)
			p.line = p.line[:0]
			if err != nil {
				return p.fail(err)
			}
		default:
			n := p.req.ContentLength() - p.req.ParsedLength()
			if n > len(data) {
				n = len(data)
			}
			if err := p.consumeBody(data[:n]); err != nil {
				return p.fail(err)
			}
			data = data[n:]
		}
	}
	if p.state == StateFailed {
		return p.err
	}
	return nil
}

func (p *Parser) fail(err error) error {
	if err == nil {
		return nil
	}
	p.state = StateFailed
	p.err = err
	return err
}

func (p *Parser) appendLine(b []byte) error {
	if len(p.line)+len(b) > p.opts.MaxLineSize {
		return errors.NewTooLarge(fmt.Sprintf("行长度超过 %d", p.opts.MaxLineSize))
	}
	p.line = append(p.line, b...)
	return nil
}

func (p *Parser) handleLine(line []byte) error {
	if p.state == StateStart {
		// 请求行之前的空行忽略
		if len(line) == 0 {
			return nil
		}
		return p.parseRequestLine(string(line))
	}
	if len(line) == 0 {
		return p.headComplete()
	}
	return p.parseHeaderLine(string(line))
}

func (p *Parser) parseRequestLine(line string) error {
	m, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || target == "" {
		return errors.NewMalformed(bufferSnippet(line))
	}

	method, ok := consts.ParseMethod(m)
	if !ok {
		return errors.NewMalformed("未知方法 " + strconv.Quote(m))
	}
	major, minor, ok := parseVersion(proto)
	if !ok || major != 1 {
		return errors.NewMalformed("不支持的协议 " + strconv.Quote(proto))
	}

	path, query, _ := strings.Cut(target, "?")
	url, derr := protocol.URLDecode(path)
	if derr != protocol.URLDecodeNone {
		return errors.NewMalformed("路径解码失败：" + derr.String())
	}
	if derr = protocol.ParseQuery(query, false, p.req.AddParam); derr != protocol.URLDecodeNone {
		return errors.NewMalformed("查询串解码失败：" + derr.String())
	}

	p.req.SetMethod(method)
	p.req.SetVersion(major, minor)
	p.req.SetURL(url)
	p.state = StateHeaders
	return nil
}

// parseVersion 解析 "HTTP/x.y"。
func parseVersion(s string) (major, minor int, ok bool) {
	if len(s) != len("HTTP/1.1") || !strings.HasPrefix(s, "HTTP/") || s[6] != '.' {
		return 0, 0, false
	}
	ma, mi := s[5]-'0', s[7]-'0'
	if ma > 9 || mi > 9 {
		return 0, 0, false
	}
	return int(ma), int(mi), true
}

func (p *Parser) parseHeaderLine(line string) error {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !httpguts.ValidHeaderFieldName(name) {
		return errors.NewMalformed(bufferSnippet(line))
	}
	value = strings.TrimPrefix(value, " ")

	switch {
	case strings.EqualFold(name, consts.HeaderHost):
		if !httpguts.ValidHostHeader(value) {
			return errors.NewMalformed("非法主机 " + strconv.Quote(value))
		}
		p.req.SetHost(value)
	case strings.EqualFold(name, consts.HeaderContentType):
		if err := p.parseContentType(value); err != nil {
			return err
		}
	case strings.EqualFold(name, consts.HeaderContentLength):
		n, err := bytesconv.ParseUint(bytesconv.S2b(strings.TrimSpace(value)))
		if err != nil {
			return errors.NewMalformed("非法正文长度 " + strconv.Quote(value))
		}
		if p.sawLength && n != p.req.ContentLength() {
			return errors.NewMalformed("正文长度不一致")
		}
		p.sawLength = true
		p.req.SetContentLength(n)
	case strings.EqualFold(name, consts.HeaderTransferEncoding):
		return errors.NewMalformed("不支持分块的请求正文")
	case strings.EqualFold(name, consts.HeaderExpect):
		if strings.EqualFold(strings.TrimSpace(value), consts.ExpectContinue) {
			p.req.SetExpectContinue(true)
		}
	case strings.EqualFold(name, consts.HeaderAuthorization):
		scheme, payload, _ := strings.Cut(value, " ")
		if strings.EqualFold(scheme, "Basic") {
			p.req.SetAuthorization(strings.TrimSpace(payload), false)
		} else if strings.EqualFold(scheme, "Digest") {
			p.req.SetAuthorization(strings.TrimSpace(payload), true)
		}
	case strings.EqualFold(name, consts.HeaderUpgrade):
		p.upgradeWS = strings.EqualFold(strings.TrimSpace(value), consts.WebSocketUpgrade)
	case strings.EqualFold(name, consts.HeaderConnection):
		p.connUpgrade = hasToken(value, "upgrade")
	case strings.EqualFold(name, consts.HeaderSecWebSocketKey):
		p.wsKey = value != ""
	case strings.EqualFold(name, consts.HeaderAccept):
		if strings.Contains(strings.ToLower(value), consts.ContentTypeEventStream) {
			p.req.SetConnType(protocol.ConnTypeEventSource)
		}
	}
	p.req.AddHeader(name, value)
	return nil
}

func (p *Parser) parseContentType(value string) error {
	mediaType, params, _ := strings.Cut(value, ";")
	mediaType = strings.TrimSpace(mediaType)
	p.req.SetContentType(mediaType)
	if !strings.HasPrefix(strings.ToLower(mediaType), "multipart/") {
		return nil
	}
	for params != "" {
		var param string
		param, params, _ = strings.Cut(params, ";")
		k, v, _ := strings.Cut(strings.TrimSpace(param), "=")
		if strings.EqualFold(k, "boundary") {
			v = strings.Trim(v, `"`)
			if v == "" || len(v) > 70 {
				break
			}
			p.req.SetBoundary(v)
			p.req.SetMultipart(true)
			return nil
		}
	}
	return errors.NewMalformed("多部分表单缺少边界")
}

// hasToken 判断逗号分隔的标头值中是否含有 token，不区分大小写。
func hasToken(v, token string) bool {
	for v != "" {
		var t string
		t, v, _ = strings.Cut(v, ",")
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}
	return false
}

func (p *Parser) headComplete() error {
	r := p.req
	switch {
	case p.upgradeWS && p.connUpgrade && p.wsKey:
		r.SetConnType(protocol.ConnTypeWebSocket)
	case r.ConnType() == protocol.ConnTypeDefault:
		r.SetConnType(protocol.ConnTypeHTTP)
	}

	parseBody, responded := p.sink.OnHeaders()
	r.PruneHeaders()

	if r.ContentLength() == 0 {
		p.complete()
		return nil
	}
	if r.ExpectContinue() && !responded {
		p.sink.OnContinue()
	}

	ct := strings.ToLower(r.ContentType())
	switch {
	case !parseBody:
		p.mode = bodyDiscard
		p.state = StateBodyOpaque
	case r.IsMultipart():
		p.mode = bodyMultipart
		p.state = StateBodyMultipart
		p.mp = NewMultipart(r.Boundary(), p.opts.MaxLineSize, p.opts.MaxFieldSize, r.AddParam, p.sink.OnUpload)
	case strings.HasPrefix(ct, consts.ContentTypeForm):
		p.startForm()
	case ct == consts.ContentTypePlain:
		p.mode = bodySniff
		p.state = StateBodyOpaque
	default:
		p.mode = bodyOpaque
		p.state = StateBodyOpaque
	}
	return nil
}

func (p *Parser) startForm() {
	p.req.SetPlainPost(true)
	p.mode = bodyForm
	p.state = StateBodyPlain
	p.form = protocol.NewFormTokenizer(p.opts.MaxFieldSize, p.req.AddParam)
}

func (p *Parser) consumeBody(b []byte) error {
	r := p.req
	index := r.ParsedLength()
	r.AddParsedLength(len(b))

	var err error
	switch p.mode {
	case bodySniff:
		err = p.sniffPlain(b, index)
	case bodyForm:
		err = p.form.Feed(b)
	case bodyMultipart:
		err = p.mp.Feed(b)
	case bodyOpaque:
		p.sink.OnBody(b, index, r.ContentLength())
	}
	if err != nil {
		return err
	}

	if r.ParsedLength() == r.ContentLength() {
		if err = p.finishBody(); err != nil {
			return err
		}
		p.complete()
	}
	return nil
}

// sniffPlain 判断 text/plain 正文是否以 "name=" 开头，是则按表单解析。
// 判定前的字节暂存在 sniff 中，判定后整体重放，因此结果与分片方式无关。
func (p *Parser) sniffPlain(b []byte, index int) error {
	start := len(p.sniff)
	p.sniff = append(p.sniff, b...)
	decided, isForm := false, false
	for i := start; i < len(p.sniff); i++ {
		if !isParamChar(p.sniff[i]) {
			decided = true
			isForm = p.sniff[i] == '=' && i > 0
			break
		}
	}
	if !decided && len(p.sniff) < p.opts.MaxFieldSize && p.req.ParsedLength() < p.req.ContentLength() {
		return nil
	}

	buf := p.sniff
	p.sniff = nil
	if isForm {
		p.startForm()
		return p.form.Feed(buf)
	}
	p.mode = bodyOpaque
	p.sink.OnBody(buf, index+len(b)-len(buf), p.req.ContentLength())
	return nil
}

func isParamChar(c byte) bool {
	return c != 0 && c != '{' && c != '[' && c != '&' && c != '=' && c != '\r' && c != '\n'
}

func (p *Parser) finishBody() error {
	switch p.mode {
	case bodyForm:
		return p.form.Close()
	case bodyMultipart:
		return p.mp.Close()
	}
	return nil
}

func (p *Parser) complete() {
	p.state = StateComplete
	p.sink.OnComplete()
}

// bufferSnippet 返回适合写入日志的片段，过长的内容只保留首尾。
func bufferSnippet(s string) string {
	const edge = 20
	if len(s) <= 2*edge {
		return strconv.Quote(s)
	}
	return strconv.Quote(s[:edge]) + "..." + strconv.Quote(s[len(s)-edge:])
}
