package hlog

import (
	"context"
	"io"
)

const systemLogPrefix = "asyncweb: "

// 以下格式串用于静默模式的识别，静默时不输出。
const (
	// ParseErrorFormat 是解析请求出错时的日志格式。
	ParseErrorFormat = "解析请求出错：远端=%s，错误=%s"
	// TransportErrorFormat 是连接出错时的日志格式。
	TransportErrorFormat = "连接出错：远端=%s，错误=%v"
)

var silentMode = false

// SetSilentMode 设置系统日志的静默开关。
// 开启后，请求解析错误与连接错误不再输出系统日志。
func SetSilentMode(s bool) {
	silentMode = s
}

// SystemLogger 返回供框架内部使用的系统记录器。
func SystemLogger() FullLogger {
	return sysLogger
}

type systemLogger struct {
	logger FullLogger
	prefix string // 日志前缀
}

func (l *systemLogger) silenced(format string) bool {
	return silentMode && (format == ParseErrorFormat || format == TransportErrorFormat)
}

func (l *systemLogger) prepend(v []any) []any {
	return append([]any{l.prefix}, v...)
}

func (l *systemLogger) SetOutput(w io.Writer) { l.logger.SetOutput(w) }
func (l *systemLogger) SetLevel(lv Level)     { l.logger.SetLevel(lv) }

func (l *systemLogger) Trace(v ...any)  { l.logger.Trace(l.prepend(v)...) }
func (l *systemLogger) Debug(v ...any)  { l.logger.Debug(l.prepend(v)...) }
func (l *systemLogger) Info(v ...any)   { l.logger.Info(l.prepend(v)...) }
func (l *systemLogger) Notice(v ...any) { l.logger.Notice(l.prepend(v)...) }
func (l *systemLogger) Warn(v ...any)   { l.logger.Warn(l.prepend(v)...) }
func (l *systemLogger) Error(v ...any)  { l.logger.Error(l.prepend(v)...) }
func (l *systemLogger) Fatal(v ...any)  { l.logger.Fatal(l.prepend(v)...) }

func (l *systemLogger) Tracef(format string, v ...any) { l.logger.Tracef(l.prefix+format, v...) }
func (l *systemLogger) Debugf(format string, v ...any) {
	if l.silenced(format) {
		return
	}
	l.logger.Debugf(l.prefix+format, v...)
}
func (l *systemLogger) Infof(format string, v ...any)   { l.logger.Infof(l.prefix+format, v...) }
func (l *systemLogger) Noticef(format string, v ...any) { l.logger.Noticef(l.prefix+format, v...) }
func (l *systemLogger) Warnf(format string, v ...any) {
	if l.silenced(format) {
		return
	}
	l.logger.Warnf(l.prefix+format, v...)
}
func (l *systemLogger) Errorf(format string, v ...any) {
	if l.silenced(format) {
		return
	}
	l.logger.Errorf(l.prefix+format, v...)
}
func (l *systemLogger) Fatalf(format string, v ...any) { l.logger.Fatalf(l.prefix+format, v...) }

func (l *systemLogger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.logger.CtxDebugf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.logger.CtxInfof(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.logger.CtxWarnf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxErrorf(ctx context.Context, format string, v ...any) {
	l.logger.CtxErrorf(ctx, l.prefix+format, v...)
}
