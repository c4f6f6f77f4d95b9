package resp

import (
	"io"

	"github.com/favbox/asyncweb/protocol/consts"
)

// TemplateProcessor 返回占位符 %name% 的替换值。
type TemplateProcessor func(name string) string

// templateSource 在读取内层内容源的同时替换 %name% 占位符。
//
// 占位符可以跨越多次读取，未闭合的占位符最多保留 TemplateParamNameLength 字节，
// 超出后按原文输出。%% 输出为单个 %。
type templateSource struct {
	inner   Source
	process TemplateProcessor

	in      []byte
	out     []byte
	token   []byte
	inToken bool
	eof     bool
}

func newTemplateSource(inner Source, process TemplateProcessor) *templateSource {
	return &templateSource{inner: inner, process: process}
}

func (t *templateSource) Fill(dst []byte) (int, error) {
	var innerErr error
	for len(t.out) < len(dst) && !t.eof {
		want := len(dst) - len(t.out)
		if cap(t.in) < want {
			t.in = make([]byte, want)
		}
		n, err := t.inner.Fill(t.in[:want])
		t.scan(t.in[:n])
		if err == io.EOF {
			t.flushToken()
			t.eof = true
			break
		}
		if err != nil || n == 0 {
			innerErr = err
			break
		}
	}

	n := copy(dst, t.out)
	t.out = t.out[:copy(t.out, t.out[n:])]
	if t.eof && len(t.out) == 0 {
		return n, io.EOF
	}
	if n == 0 && innerErr != nil {
		return 0, innerErr
	}
	return n, nil
}

func (t *templateSource) scan(b []byte) {
	for _, c := range b {
		if !t.inToken {
			if c == consts.TemplatePlaceholder {
				t.inToken = true
				t.token = t.token[:0]
			} else {
				t.out = append(t.out, c)
			}
			continue
		}
		if c == consts.TemplatePlaceholder {
			if len(t.token) == 0 {
				t.out = append(t.out, c)
			} else {
				t.out = append(t.out, t.process(string(t.token))...)
			}
			t.inToken = false
			continue
		}
		t.token = append(t.token, c)
		if len(t.token) > consts.TemplateParamNameLength {
			t.flushToken()
		}
	}
}

// flushToken 按原文输出未闭合的占位符。
func (t *templateSource) flushToken() {
	if !t.inToken {
		return
	}
	t.out = append(t.out, consts.TemplatePlaceholder)
	t.out = append(t.out, t.token...)
	t.inToken = false
}

func (t *templateSource) Close() error {
	if c, ok := t.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
