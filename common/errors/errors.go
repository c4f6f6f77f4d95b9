package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMalformedRequest = errors.New("请求格式错误")
	ErrEntityTooLarge   = errors.New("请求行或头部超过长度限制")
	ErrUnauthorized     = errors.New("身份认证失败")
	ErrNotFound         = errors.New("未找到匹配的处理器")
	ErrInternalState    = errors.New("响应内部状态异常")
	ErrTransport        = errors.New("传输层错误")
	ErrTimeout          = errors.New("连接超时")
	ErrConnectionClosed = errors.New("连接已关闭")
	ErrNotAcceptable    = errors.New("响应已存在")
	ErrInvalidSource    = errors.New("无效的响应内容源")
)

type ErrorType uint64

// Error 表示一个带有错误类型和元信息的错误规范。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

// 返回错误的消息字符串。
func (msg *Error) Error() string {
	if msg.Meta != nil {
		return fmt.Sprintf("%s: %v", msg.Err.Error(), msg.Meta)
	}
	return msg.Err.Error()
}

func (msg *Error) Unwrap() error {
	return msg.Err
}

func (msg *Error) IsType(flags ErrorType) bool {
	return (msg.Type & flags) > 0
}

func (msg *Error) SetType(flags ErrorType) *Error {
	msg.Type = flags
	return msg
}

func (msg *Error) SetMeta(data any) *Error {
	msg.Meta = data
	return msg
}

const (
	// ErrorTypeMalformed 请求行、头部或百分号编码错误，应答 400。
	ErrorTypeMalformed ErrorType = 1 << iota
	// ErrorTypeTooLarge 行长度超限，应答 413。
	ErrorTypeTooLarge
	// ErrorTypeUnauthorized 认证失败，应答 401 并附带质询。
	ErrorTypeUnauthorized
	// ErrorTypeNotFound 没有处理器产生响应，应答 404。
	ErrorTypeNotFound
	// ErrorTypeInternal 响应计数不变量被破坏，直接关闭连接。
	ErrorTypeInternal
	// ErrorTypeTransport 写入或确认失败，响应进入失败态并关闭连接。
	ErrorTypeTransport
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

var _ error = (*Error)(nil)

// New 新建一个指定错误和错误类型及元数据的自定义错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{
		Err:  err,
		Type: t,
		Meta: meta,
	}
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

// NewMalformed 新建一个请求格式错误，meta 通常为出错的行或字段。
func NewMalformed(meta any) *Error {
	return New(ErrMalformedRequest, ErrorTypeMalformed, meta)
}

// NewTooLarge 新建一个长度超限错误。
func NewTooLarge(meta any) *Error {
	return New(ErrEntityTooLarge, ErrorTypeTooLarge, meta)
}

// NewTransport 包装一个传输层错误。
func NewTransport(err error) *Error {
	return New(err, ErrorTypeTransport, nil)
}

// StatusCode 返回错误对应的应答状态码。
// 内部错误与传输错误不产生应答，返回 0。
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		switch {
		case errors.Is(err, ErrMalformedRequest):
			return http.StatusBadRequest
		case errors.Is(err, ErrEntityTooLarge):
			return http.StatusRequestEntityTooLarge
		}
		return 0
	}
	switch {
	case e.IsType(ErrorTypeMalformed):
		return http.StatusBadRequest
	case e.IsType(ErrorTypeTooLarge):
		return http.StatusRequestEntityTooLarge
	case e.IsType(ErrorTypeUnauthorized):
		return http.StatusUnauthorized
	case e.IsType(ErrorTypeNotFound):
		return http.StatusNotFound
	}
	return 0
}

// ErrorChain 错误链。
type ErrorChain []*Error

func (c ErrorChain) String() string {
	if len(c) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, msg := range c {
		fmt.Fprintf(&buf, "Error #%02d: %s\n", i+1, msg.Err)
		if msg.Meta != nil {
			fmt.Fprintf(&buf, "     Meta: %v\n", msg.Meta)
		}
	}
	return buf.String()
}

// Errors 返回错误的消息字符串切片。
func (c ErrorChain) Errors() []string {
	if len(c) == 0 {
		return nil
	}
	errorStrings := make([]string, len(c))
	for i, err := range c {
		errorStrings[i] = err.Error()
	}
	return errorStrings
}

// ByType 返回按指定类型过滤的错误数组。支持位或|操作。
func (c ErrorChain) ByType(t ErrorType) ErrorChain {
	if len(c) == 0 {
		return nil
	}
	if t == ErrorTypeAny {
		return c
	}
	var result ErrorChain
	for _, msg := range c {
		if msg.IsType(t) {
			result = append(result, msg)
		}
	}
	return result
}

// Last 返回错误链中最后一个错误。
func (c ErrorChain) Last() *Error {
	if length := len(c); length > 0 {
		return c[length-1]
	}
	return nil
}
