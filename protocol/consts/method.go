package consts

// Method 是请求方法的位掩码，解析成功的请求恰好置位一个方法。
type Method uint8

// 请求方法。
const (
	MethodGet Method = 1 << iota
	MethodPost
	MethodDelete
	MethodPut
	MethodPatch
	MethodHead
	MethodOptions

	// MethodAny 匹配所有方法。
	MethodAny Method = 0x7F
)

var methodNames = [...]struct {
	m    Method
	name string
}{
	{MethodGet, "GET"},
	{MethodPost, "POST"},
	{MethodDelete, "DELETE"},
	{MethodPut, "PUT"},
	{MethodPatch, "PATCH"},
	{MethodHead, "HEAD"},
	{MethodOptions, "OPTIONS"},
}

// ParseMethod 将方法名映射为位掩码，未知方法返回 0 和 false。方法名区分大小写。
func ParseMethod(s string) (Method, bool) {
	for _, v := range methodNames {
		if v.name == s {
			return v.m, true
		}
	}
	return 0, false
}

// String 返回单个方法的名称；组合掩码返回 "ANY" 或 "UNKNOWN"。
func (m Method) String() string {
	for _, v := range methodNames {
		if v.m == m {
			return v.name
		}
	}
	if m == MethodAny {
		return "ANY"
	}
	return "UNKNOWN"
}

// Has 判断 m 是否包含 other 中的任一方法。
func (m Method) Has(other Method) bool {
	return m&other != 0
}
