// Package resp 实现由确认驱动的响应状态机。
//
// 响应头在 Respond 时立即写出；头部被完全确认后，每次确认或轮询
// 从内容源拉取至多一片不超过发送窗口的正文，直到全部字节被确认。
package resp

import (
	"io"

	"github.com/favbox/asyncweb/common/bytebufferpool"
	"github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/internal/bytesconv"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/consts"
)

// State 是响应的状态，只会单调推进。
type State uint8

const (
	StateSetup State = iota
	StateHeaders
	StateContent
	StateWaitAck
	StateEnd
	StateFailed
)

var stateNames = [...]string{"SETUP", "HEADERS", "CONTENT", "WAIT_ACK", "END", "FAILED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Writer 是响应写出的传输端。
type Writer interface {
	// Write 写入 b，返回被接受的字节数，不超过 Space。
	Write(b []byte) int
	// Space 返回当前可写入的字节数。
	Space() int
}

var chunkTerminator = []byte("0\r\n\r\n")

// Response 是一个 HTTP 响应。
//
// 计数器：headLength 为响应头长度；writtenLength 为已生成的全部字节数（含分块帧）；
// sentLength 为其中被传输端接受的字节数；ackedLength 为已确认的字节数；
// bodyLength 为从内容源取出的正文字节数。始终满足
// ackedLength ≤ sentLength ≤ writtenLength，定长正文还满足 writtenLength ≤ headLength+contentLength。
type Response struct {
	code          int
	contentType   string
	contentLength int // -1 表示未知长度
	headers       protocol.HeaderList
	source        Source
	invalid       bool
	lengthBySize  bool

	state    State
	err      error
	chunked  bool
	unframed bool
	skipBody bool

	head        *bytebufferpool.ByteBuffer
	headWritten int
	scratch     *bytebufferpool.ByteBuffer
	pending     []byte
	sourceDone  bool

	headLength    int
	bodyLength    int
	sentLength    int
	writtenLength int
	ackedLength   int
}

// NewResponse 创建一个以 src 为内容源的响应，length<0 表示长度未知。
func NewResponse(code int, contentType string, length int, src Source) *Response {
	return &Response{
		code:          code,
		contentType:   contentType,
		contentLength: length,
		source:        src,
	}
}

func (r *Response) Code() int { return r.code }

func (r *Response) SetCode(code int) { r.code = code }

func (r *Response) ContentType() string { return r.contentType }

func (r *Response) SetContentType(ct string) { r.contentType = ct }

func (r *Response) ContentLength() int { return r.contentLength }

func (r *Response) Headers() *protocol.HeaderList { return &r.headers }

func (r *Response) State() State { return r.state }

func (r *Response) Err() error { return r.err }

func (r *Response) HeadLength() int { return r.headLength }

func (r *Response) SentLength() int { return r.sentLength }

func (r *Response) BodyLength() int { return r.bodyLength }

func (r *Response) WrittenLength() int { return r.writtenLength }

func (r *Response) AckedLength() int { return r.ackedLength }

// SetContentLength 设置正文长度，仅在 SETUP 状态有效。
func (r *Response) SetContentLength(n int) {
	if r.state == StateSetup {
		r.contentLength = n
	}
}

// AddHeader 追加一个响应头，仅在 SETUP 状态有效。
func (r *Response) AddHeader(name, value string) {
	if r.state == StateSetup {
		r.headers.Add(name, value)
	}
}

// Valid 判断内容源是否可用。
func (r *Response) Valid() bool {
	return !r.invalid && (r.source != nil || r.contentLength == 0)
}

// Started 判断是否已开始写出。
func (r *Response) Started() bool { return r.state != StateSetup }

// Finished 判断是否已结束（成功或失败）。
func (r *Response) Finished() bool { return r.state == StateEnd || r.state == StateFailed }

// Failed 判断是否失败。
func (r *Response) Failed() bool { return r.state == StateFailed }

// Chunked 判断是否使用分块编码，Respond 之后有效。
func (r *Response) Chunked() bool { return r.chunked }

// Respond 组装响应头并立即写出。minor 为请求的次版本号，skipBody 用于 HEAD 请求。
func (r *Response) Respond(w Writer, minor int, skipBody bool) {
	if r.state != StateSetup {
		return
	}
	if r.lengthBySize {
		if s, ok := r.source.(Sizer); ok {
			r.contentLength = s.Len()
		}
	}
	r.skipBody = skipBody || r.code == consts.StatusNoContent || r.code == consts.StatusNotModified
	if r.contentLength < 0 {
		if minor >= 1 {
			r.chunked = true
		} else {
			r.unframed = true
		}
	}

	r.head = bytebufferpool.Get()
	b := r.head.B
	b = append(b, consts.StatusLine(minor, r.code)...)
	if r.chunked {
		b = appendHeader(b, consts.HeaderTransferEncoding, consts.ChunkedEncoding)
	} else if !r.unframed {
		b = append(b, consts.HeaderContentLength...)
		b = append(b, ':', ' ')
		b = bytesconv.AppendUint(b, r.contentLength)
		b = append(b, '\r', '\n')
	}
	if r.contentType != "" {
		b = appendHeader(b, consts.HeaderContentType, r.contentType)
	}
	b = appendHeader(b, consts.HeaderConnection, consts.ConnectionClose)
	b = r.headers.AppendBytes(b)
	b = protocol.DefaultHeaders().AppendBytes(b)
	b = append(b, '\r', '\n')
	r.head.B = b

	r.headLength = len(b)
	r.writtenLength = len(b)
	r.state = StateHeaders
	r.writeHead(w)
}

func appendHeader(b []byte, name, value string) []byte {
	b = append(b, name...)
	b = append(b, ':', ' ')
	b = append(b, value...)
	return append(b, '\r', '\n')
}

// Ack 记录 n 字节的确认并推进状态机。
func (r *Response) Ack(w Writer, n int) {
	if r.Finished() || r.state == StateSetup {
		return
	}
	r.ackedLength += n
	if r.ackedLength > r.sentLength {
		r.fail(errors.New(errors.ErrInternalState, errors.ErrorTypeInternal, "确认字节数超过已写出字节数"))
		return
	}
	r.drive(w)
}

// Poll 在轮询事件时推进状态机，用于重试暂无数据的填充回调。
func (r *Response) Poll(w Writer) {
	if r.Finished() || r.state == StateSetup {
		return
	}
	r.drive(w)
}

// Fail 使响应进入失败态，用于传输错误。
func (r *Response) Fail(err error) {
	if !r.Finished() {
		r.fail(errors.NewTransport(err))
	}
}

// Release 释放内容源与缓冲区，可重复调用。
func (r *Response) Release() {
	if r.source != nil {
		if c, ok := r.source.(io.Closer); ok {
			_ = c.Close()
		}
		r.source = nil
	}
	if r.head != nil {
		bytebufferpool.Put(r.head)
		r.head = nil
	}
	if r.scratch != nil {
		bytebufferpool.Put(r.scratch)
		r.scratch = nil
	}
}

func (r *Response) fail(err error) {
	r.state = StateFailed
	r.err = err
	hlog.SystemLogger().Debugf("响应失败：状态码=%d，错误=%v", r.code, err)
	r.Release()
}

func (r *Response) drive(w Writer) {
	switch r.state {
	case StateHeaders:
		if r.headWritten < r.headLength {
			r.writeHead(w)
			return
		}
		if r.ackedLength < r.headLength {
			return
		}
		if r.skipBody || r.source == nil || (r.contentLength == 0 && !r.chunked) {
			r.state = StateWaitAck
			r.checkEnd()
			return
		}
		r.state = StateContent
		r.pump(w)
	case StateContent:
		r.pump(w)
	case StateWaitAck:
		r.checkEnd()
	}
}

func (r *Response) writeHead(w Writer) {
	n := w.Write(r.head.B[r.headWritten:])
	r.headWritten += n
	r.sentLength += n
}

func (r *Response) checkEnd() {
	if r.ackedLength == r.writtenLength {
		r.state = StateEnd
		r.Release()
	}
}

// pump 先写出积压的帧字节，再从内容源拉取一片。
func (r *Response) pump(w Writer) {
	if len(r.pending) > 0 {
		n := w.Write(r.pending)
		r.sentLength += n
		r.pending = r.pending[n:]
		if len(r.pending) > 0 {
			return
		}
		if r.sourceDone {
			r.state = StateWaitAck
			r.checkEnd()
			return
		}
	}

	space := w.Space()
	if space <= 0 {
		return
	}
	if r.chunked {
		r.pumpChunked(w, space)
	} else {
		r.pumpPlain(w, space)
	}
	if r.state == StateContent && r.sourceDone && len(r.pending) == 0 {
		r.state = StateWaitAck
		r.checkEnd()
	}
}

func (r *Response) buffer(size int) []byte {
	if r.scratch == nil {
		r.scratch = bytebufferpool.Get()
	}
	if cap(r.scratch.B) < size {
		r.scratch.B = make([]byte, size)
	}
	return r.scratch.B[:size]
}

func (r *Response) pumpPlain(w Writer, space int) {
	limit := space
	if !r.unframed {
		if remaining := r.contentLength - r.bodyLength; remaining < limit {
			limit = remaining
		}
	}
	buf := r.buffer(limit)
	n, err := r.source.Fill(buf)
	if err != nil && err != io.EOF && err != ErrTryAgain {
		r.fail(err)
		return
	}
	if n > limit {
		r.fail(errors.New(errors.ErrInternalState, errors.ErrorTypeInternal, "内容源返回的字节数超过缓冲区"))
		return
	}
	r.bodyLength += n
	r.send(w, buf[:n])

	switch {
	case !r.unframed && r.bodyLength == r.contentLength:
		r.sourceDone = true
	case err == io.EOF && r.unframed:
		r.sourceDone = true
	case err == io.EOF:
		r.fail(errors.New(io.ErrUnexpectedEOF, errors.ErrorTypeInternal, "内容源短于声明的长度"))
	}
}

func (r *Response) pumpChunked(w Writer, space int) {
	headroom := bytesconv.HexUintLen(space) + 2
	limit := space - headroom - 2
	if limit <= 0 {
		return
	}
	buf := r.buffer(headroom + limit + 2 + len(chunkTerminator))
	n, err := r.source.Fill(buf[headroom : headroom+limit])
	if err != nil && err != io.EOF && err != ErrTryAgain {
		r.fail(err)
		return
	}
	if n > limit {
		r.fail(errors.New(errors.ErrInternalState, errors.ErrorTypeInternal, "内容源返回的字节数超过缓冲区"))
		return
	}

	start, end := headroom, headroom
	if n > 0 {
		r.bodyLength += n
		size := bytesconv.AppendHexUint(make([]byte, 0, 16), n)
		start = headroom - len(size) - 2
		copy(buf[start:], size)
		buf[headroom-2], buf[headroom-1] = '\r', '\n'
		end = headroom + n
		buf[end], buf[end+1] = '\r', '\n'
		end += 2
	}
	if err == io.EOF {
		end += copy(buf[end:], chunkTerminator)
		r.sourceDone = true
	}
	r.send(w, buf[start:end])
}

// send 写出 b，未被接受的部分复制到积压区。
func (r *Response) send(w Writer, b []byte) {
	if len(b) == 0 {
		return
	}
	r.writtenLength += len(b)
	n := w.Write(b)
	r.sentLength += n
	if n < len(b) {
		r.pending = append(r.pending[:0], b[n:]...)
	}
}
