//go:build noregex

package app

// RegexEnabled 表示是否支持正则路由。
const RegexEnabled = false

type pattern struct{}

func compilePattern(string) *pattern { return nil }

func (p *pattern) match(*Request) bool { return false }
