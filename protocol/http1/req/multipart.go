package req

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/favbox/asyncweb/common/errors"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/consts"
)

type multipartState uint8

const (
	mpPreamble multipartState = iota
	mpBoundaryTail
	mpHeaders
	mpData
	mpEpilogue
)

// Multipart 是 multipart/form-data 的流式解析器。
//
// 定界符为 "\r\n--" + boundary，逐字节滚动匹配。匹配中断时，已匹配的前缀
// 必然是定界符自身的字节，直接作为数据补发即可，因此不缓存任何部分数据。
// 由于 boundary 不含 CR，中断后只需用当前字节重新尝试匹配定界符首字节。
type Multipart struct {
	delim []byte
	state multipartState
	pos   int // 已匹配的定界符字节数

	maxLine  int
	maxField int
	line     []byte
	tail     []byte

	// 当前部分
	name     string
	filename string
	ctype    string
	value    []byte
	index    int

	addParam func(p protocol.Param)
	onUpload func(filename string, index int, data []byte, final bool)
}

// NewMultipart 创建解析器。addParam 在每个部分结束时收到表单字段或文件参数，
// onUpload 按序收到文件内容。
func NewMultipart(boundary string, maxLine, maxField int,
	addParam func(p protocol.Param),
	onUpload func(filename string, index int, data []byte, final bool),
) *Multipart {
	return &Multipart{
		delim:    []byte("\r\n--" + boundary),
		state:    mpPreamble,
		pos:      2, // 正文开头的首个定界符没有前导 CRLF
		maxLine:  maxLine,
		maxField: maxField,
		addParam: addParam,
		onUpload: onUpload,
	}
}

// Feed 喂入一段正文，可在任意位置分片。
func (m *Multipart) Feed(b []byte) error {
	for len(b) > 0 {
		var (
			n   int
			err error
		)
		switch m.state {
		case mpPreamble:
			n = m.scanPreamble(b)
		case mpBoundaryTail:
			n, err = m.scanTail(b)
		case mpHeaders:
			n, err = m.scanHeaders(b)
		case mpData:
			n, err = m.scanData(b)
		case mpEpilogue:
			return nil
		}
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Close 在正文结束时调用，缺少结束定界符时返回格式错误。
func (m *Multipart) Close() error {
	if !m.Done() {
		return errors.NewMalformed("多部分正文缺少结束定界符")
	}
	return nil
}

// Done 判断是否已读到结束定界符。
func (m *Multipart) Done() bool {
	return m.state == mpEpilogue
}

func (m *Multipart) scanPreamble(b []byte) int {
	for i, c := range b {
		if c == m.delim[m.pos] {
			m.pos++
			if m.pos == len(m.delim) {
				m.pos = 0
				m.state = mpBoundaryTail
				return i + 1
			}
			continue
		}
		m.pos = 0
		if c == m.delim[0] {
			m.pos = 1
		}
	}
	return len(b)
}

// scanTail 读取定界符之后的 "--" 或 "\r\n"，允许其间的线性空白。
func (m *Multipart) scanTail(b []byte) (int, error) {
	for i, c := range b {
		if len(m.tail) == 0 && (c == ' ' || c == '\t') {
			continue
		}
		m.tail = append(m.tail, c)
		if len(m.tail) < 2 {
			continue
		}
		tail := string(m.tail)
		m.tail = m.tail[:0]
		switch tail {
		case "--":
			m.state = mpEpilogue
		case "\r\n":
			m.state = mpHeaders
		default:
			return 0, errors.NewMalformed("非法的定界符结尾 " + fmt.Sprintf("%q", tail))
		}
		return i + 1, nil
	}
	return len(b), nil
}

func (m *Multipart) scanHeaders(b []byte) (int, error) {
	i := bytes.IndexByte(b, '\n')
	chunk := b
	if i >= 0 {
		chunk = b[:i]
	}
	if len(m.line)+len(chunk) > m.maxLine {
		return 0, errors.NewTooLarge("多部分头部行过长")
	}
	m.line = append(m.line, chunk...)
	if i < 0 {
		return len(b), nil
	}

	line := string(bytes.TrimSuffix(m.line, []byte{'\r'}))
	m.line = m.line[:0]
	if line == "" {
		m.state = mpData
		m.pos = 0
		m.index = 0
		return i + 1, nil
	}

	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return 0, errors.NewMalformed(bufferSnippet(line))
	}
	value = strings.TrimSpace(value)
	switch {
	case strings.EqualFold(name, consts.HeaderContentDisposition):
		m.parseDisposition(value)
	case strings.EqualFold(name, consts.HeaderContentType):
		m.ctype = value
	}
	return i + 1, nil
}

// parseDisposition 解析 form-data; name="x"; filename="y"。
func (m *Multipart) parseDisposition(v string) {
	_, params, _ := strings.Cut(v, ";")
	for params != "" {
		var param string
		param, params, _ = strings.Cut(params, ";")
		k, val, _ := strings.Cut(strings.TrimSpace(param), "=")
		val = strings.Trim(val, `"`)
		switch strings.ToLower(k) {
		case "name":
			m.name = val
		case "filename":
			m.filename = val
		}
	}
}

func (m *Multipart) isFile() bool {
	return m.filename != ""
}

func (m *Multipart) scanData(b []byte) (int, error) {
	run := -1 // 待交付数据的起点
	for i, c := range b {
		if c == m.delim[m.pos] {
			if m.pos == 0 && run >= 0 {
				if err := m.emit(b[run:i]); err != nil {
					return 0, err
				}
				run = -1
			}
			m.pos++
			if m.pos == len(m.delim) {
				m.pos = 0
				if err := m.endPart(); err != nil {
					return 0, err
				}
				m.state = mpBoundaryTail
				return i + 1, nil
			}
			continue
		}
		if m.pos > 0 {
			// 补发已匹配的定界符前缀
			if err := m.emit(m.delim[:m.pos]); err != nil {
				return 0, err
			}
			m.pos = 0
			if c == m.delim[0] {
				m.pos = 1
				continue
			}
		}
		if run < 0 {
			run = i
		}
	}
	if run >= 0 {
		if err := m.emit(b[run:]); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (m *Multipart) emit(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if m.isFile() {
		if m.onUpload != nil {
			m.onUpload(m.filename, m.index, data, false)
		}
		m.index += len(data)
		return nil
	}
	if len(m.value)+len(data) > m.maxField {
		return errors.NewTooLarge("表单字段 " + m.name)
	}
	m.value = append(m.value, data...)
	m.index += len(data)
	return nil
}

func (m *Multipart) endPart() error {
	if m.isFile() {
		if m.onUpload != nil {
			m.onUpload(m.filename, m.index, nil, true)
		}
		m.addParam(protocol.Param{
			Name:        m.name,
			Value:       m.filename,
			IsForm:      true,
			IsFile:      true,
			Size:        m.index,
			ContentType: m.ctype,
		})
	} else {
		m.addParam(protocol.Param{Name: m.name, Value: string(m.value), IsForm: true})
	}
	m.name, m.filename, m.ctype = "", "", ""
	m.value = m.value[:0]
	m.index = 0
	return nil
}
