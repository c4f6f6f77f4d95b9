package resp

import (
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/favbox/asyncweb/common/bytebufferpool"
	"github.com/favbox/asyncweb/common/compress"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/common/json"
	"github.com/favbox/asyncweb/protocol/consts"
)

// New 创建内存正文的响应。
func New(code int, contentType string, body []byte) *Response {
	return NewResponse(code, contentType, len(body), &bufferSource{b: body})
}

// NewString 创建字符串正文的响应。
func NewString(code int, contentType, body string) *Response {
	return New(code, contentType, []byte(body))
}

// NewStatus 创建只有状态行与头部的响应。
func NewStatus(code int) *Response {
	return NewResponse(code, "", 0, nil)
}

// NewRedirect 创建 302 重定向响应。
func NewRedirect(url string) *Response {
	r := NewStatus(consts.StatusFound)
	r.AddHeader(consts.HeaderLocation, url)
	return r
}

// NewReader 创建读取 rd 的响应，length<0 表示长度未知。rd 实现 io.Closer 时在结束后关闭。
func NewReader(code int, contentType string, rd io.Reader, length int) *Response {
	if rd == nil {
		return invalid(code, contentType)
	}
	return NewResponse(code, contentType, length, &readerSource{r: rd})
}

// NewFiller 创建由填充回调产出正文的响应，length<0 表示长度未知。
func NewFiller(code int, contentType string, length int, fn Filler) *Response {
	if fn == nil {
		return invalid(code, contentType)
	}
	return NewResponse(code, contentType, length, &fillerSource{fn: fn})
}

// NewChunked 创建长度未知的填充响应，HTTP/1.1 下使用分块编码。
func NewChunked(code int, contentType string, fn Filler) *Response {
	return NewFiller(code, contentType, -1, fn)
}

// NewJSON 创建 JSON 正文的响应，编码失败时响应无效。
func NewJSON(code int, v any) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		hlog.SystemLogger().Warnf("编码 JSON 响应失败：%v", err)
		return invalid(code, consts.ContentTypeJSON)
	}
	return New(code, consts.ContentTypeJSON, b)
}

// NewCompressed 以 enc 压缩 body 并设置 Content-Encoding。
func NewCompressed(code int, contentType string, body []byte, enc compress.Encoding) *Response {
	zipped, err := compress.AppendBytes(nil, body, enc)
	if err != nil {
		hlog.SystemLogger().Warnf("压缩响应失败：%v", err)
		return invalid(code, contentType)
	}
	r := New(code, contentType, zipped)
	r.AddHeader(consts.HeaderContentEncoding, string(enc))
	return r
}

// NewFile 创建文件响应。name 不存在时尝试 name.gz 并设置 Content-Encoding: gzip。
// contentType 为空时按扩展名推断；download 为真时以附件形式下载。
func NewFile(fsys fs.FS, name, contentType string, download bool) *Response {
	f, gzipped, err := OpenFile(fsys, name)
	if err != nil {
		hlog.SystemLogger().Debugf("打开文件 %s 失败：%v", name, err)
		return invalid(consts.StatusOK, contentType)
	}
	r := NewFromFile(f, name, contentType, download)
	if gzipped {
		r.AddHeader(consts.HeaderContentEncoding, string(compress.EncodingGzip))
	}
	return r
}

// OpenFile 打开 name，不存在时回退到预压缩的 name.gz。
func OpenFile(fsys fs.FS, name string) (f fs.File, gzipped bool, err error) {
	f, err = fsys.Open(name)
	if err == nil {
		return f, false, nil
	}
	gz, gzErr := fsys.Open(name + consts.GzipSuffix)
	if gzErr != nil {
		return nil, false, err
	}
	return gz, true, nil
}

// NewFromFile 创建已打开文件的响应，响应结束后关闭 f。
func NewFromFile(f fs.File, name, contentType string, download bool) *Response {
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return invalid(consts.StatusOK, contentType)
	}
	if contentType == "" {
		contentType = consts.ContentTypeByPath(name)
	}
	r := NewResponse(consts.StatusOK, contentType, int(info.Size()), &readerSource{r: f})
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	r.AddHeader(consts.HeaderContentDisposition, fmt.Sprintf(`%s; filename="%s"`, disposition, path.Base(name)))
	return r
}

// WithTemplate 以 p 替换正文中的 %name% 占位符，替换后长度未知。
func (r *Response) WithTemplate(p TemplateProcessor) *Response {
	if r.state != StateSetup || r.source == nil || p == nil {
		return r
	}
	r.source = newTemplateSource(r.source, p)
	r.contentLength = -1
	r.lengthBySize = false
	return r
}

func invalid(code int, contentType string) *Response {
	r := NewResponse(code, contentType, 0, nil)
	r.invalid = true
	return r
}

// Stream 是先由处理器写入池化缓冲区、再按确认发送的响应。
type Stream struct {
	*Response
	buf *bytebufferpool.ByteBuffer
}

// NewStream 创建响应流，长度在发送时确定。
func NewStream(code int, contentType string) *Stream {
	buf := bytebufferpool.Get()
	r := NewResponse(code, contentType, -1, streamSource{buf})
	r.lengthBySize = true
	return &Stream{Response: r, buf: buf}
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.Started() {
		return 0, io.ErrClosedPipe
	}
	return s.buf.Write(p)
}

func (s *Stream) WriteString(str string) (int, error) {
	if s.Started() {
		return 0, io.ErrClosedPipe
	}
	return s.buf.WriteString(str)
}

// Printf 按格式写入。
func (s *Stream) Printf(format string, args ...any) (int, error) {
	return fmt.Fprintf(s, format, args...)
}

// Len 返回已写入的字节数。
func (s *Stream) Len() int {
	return s.buf.Len()
}

// streamSource 以池化缓冲区为内容源，关闭时归还缓冲区。
type streamSource struct {
	*bytebufferpool.ByteBuffer
}

func (s streamSource) Close() error {
	bytebufferpool.Put(s.ByteBuffer)
	return nil
}
