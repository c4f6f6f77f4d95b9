//go:build (linux || windows || darwin) && amd64 && !stdjson

// Package json 按平台选择 JSON 实现：amd64 上使用 sonic，其余平台或指定 stdjson 标签时使用标准库。
package json

import "github.com/bytedance/sonic"

// Name 是当前使用的 JSON 实现。
const Name = "sonic"

// 与 encoding/json 行为一致：键有序、转义 HTML。
var api = sonic.ConfigStd

var (
	Marshal    = api.Marshal
	Unmarshal  = api.Unmarshal
	NewEncoder = api.NewEncoder
)
