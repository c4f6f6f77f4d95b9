//go:build !noregex

package app

import (
	"regexp"
	"strings"

	"github.com/favbox/asyncweb/common/hlog"
)

// RegexEnabled 表示是否支持正则路由。
const RegexEnabled = true

type pattern struct {
	re *regexp.Regexp
}

// compilePattern 编译 "^...$" 形式的 URI，其他形式返回 nil。
func compilePattern(uri string) *pattern {
	if !strings.HasPrefix(uri, "^") || !strings.HasSuffix(uri, "$") {
		return nil
	}
	re, err := regexp.Compile(uri)
	if err != nil {
		hlog.SystemLogger().Errorf("路由正则 %q 编译失败：%v", uri, err)
		return &pattern{}
	}
	return &pattern{re: re}
}

func (p *pattern) match(r *Request) bool {
	if p.re == nil {
		return false
	}
	m := p.re.FindStringSubmatch(r.URL())
	if m == nil {
		return false
	}
	r.ResetPathArgs()
	for _, s := range m[1:] {
		r.AddPathArg(s)
	}
	return true
}
