package protocol

import (
	"strings"

	"github.com/favbox/asyncweb/common/errors"
)

// BodyParamName 是无法按键值拆分的正文参数名。
const BodyParamName = "body"

// ParseQuery 按 '&' 拆分查询串，再按第一个 '=' 拆分名称与取值，两者均做百分号解码。
//
// 空片段被忽略，没有 '=' 的片段取值为空串。遇到第一个解码错误即停止并返回该错误。
func ParseQuery(s string, isForm bool, add func(p Param)) URLDecodeError {
	for len(s) > 0 {
		var tok string
		tok, s, _ = strings.Cut(s, "&")
		if tok == "" {
			continue
		}
		name, value, _ := strings.Cut(tok, "=")
		n, err := URLDecode(name)
		if err != URLDecodeNone {
			return err
		}
		v, err := URLDecode(value)
		if err != URLDecodeNone {
			return err
		}
		add(Param{Name: n, Value: v, IsForm: isForm})
	}
	return URLDecodeNone
}

// FormTokenizer 是 application/x-www-form-urlencoded 正文的流式分词器。
//
// 每遇到 '&' 以及正文结束时产出一个参数。以 '{' 或 '[' 开头的正文整体作为名为 body 的参数；
// 不含 '=' 的片段同样以 body 为名原样产出。
type FormTokenizer struct {
	add     func(p Param)
	maxSize int
	buf     []byte
	started bool
	raw     bool
}

// NewFormTokenizer 创建分词器，单个片段超过 maxSize 字节时报告长度超限，maxSize<=0 表示不限制。
func NewFormTokenizer(maxSize int, add func(p Param)) *FormTokenizer {
	return &FormTokenizer{add: add, maxSize: maxSize}
}

// Feed 喂入一段正文，可在任意位置分片。
func (t *FormTokenizer) Feed(data []byte) error {
	for _, c := range data {
		if !t.started {
			t.started = true
			t.raw = c == '{' || c == '['
		}
		if c == '&' && !t.raw {
			if err := t.flush(); err != nil {
				return err
			}
			continue
		}
		if t.maxSize > 0 && len(t.buf) >= t.maxSize {
			return errors.NewTooLarge("表单字段")
		}
		t.buf = append(t.buf, c)
	}
	return nil
}

// Close 在正文结束时调用，产出最后一个片段。
func (t *FormTokenizer) Close() error {
	return t.flush()
}

func (t *FormTokenizer) flush() error {
	if len(t.buf) == 0 {
		return nil
	}
	tok := string(t.buf)
	t.buf = t.buf[:0]

	if t.raw || tok[0] == '{' || tok[0] == '[' || strings.IndexByte(tok, '=') < 0 {
		t.add(Param{Name: BodyParamName, Value: tok, IsForm: true})
		return nil
	}
	name, value, _ := strings.Cut(tok, "=")
	n, derr := URLDecode(name)
	if derr == URLDecodeNone {
		var v string
		if v, derr = URLDecode(value); derr == URLDecodeNone {
			t.add(Param{Name: n, Value: v, IsForm: true})
			return nil
		}
	}
	return errors.NewMalformed(derr.String())
}
