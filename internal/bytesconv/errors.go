package bytesconv

import "errors"

// ParseUint 的解析错误。
var (
	errEmptyInt               = errors.New("数字为空")
	errUnexpectedFirstChar    = errors.New("数字首字符不是 0-9")
	errUnexpectedTrailingChar = errors.New("数字含有 0-9 以外的字符")
	errTooLongInt             = errors.New("数字超出 int 范围")
)
