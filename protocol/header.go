package protocol

import "strings"

// Header 是一个请求或响应标头。
//
// 名称比较不区分 ASCII 大小写，取值原样保留（冒号后的一个前导空格除外）。
type Header struct {
	Name  string
	Value string
}

// HeaderList 是按加入顺序保存的标头列表。
//
// 同名标头会全部保留，按名称查找时返回第一个。
type HeaderList struct {
	items []Header
}

// Add 追加一个标头。
func (h *HeaderList) Add(name, value string) {
	h.items = append(h.items, Header{Name: name, Value: value})
}

// Get 返回第一个名称匹配的标头，不存在返回 nil。
func (h *HeaderList) Get(name string) *Header {
	for i := range h.items {
		if strings.EqualFold(h.items[i].Name, name) {
			return &h.items[i]
		}
	}
	return nil
}

// Value 返回第一个名称匹配的标头值，不存在返回空串。
func (h *HeaderList) Value(name string) string {
	if hd := h.Get(name); hd != nil {
		return hd.Value
	}
	return ""
}

// Has 判断是否存在指定名称的标头。
func (h *HeaderList) Has(name string) bool {
	return h.Get(name) != nil
}

// At 返回第 i 个标头，越界返回 nil。
func (h *HeaderList) At(i int) *Header {
	if i < 0 || i >= len(h.items) {
		return nil
	}
	return &h.items[i]
}

// Len 返回标头数量。
func (h *HeaderList) Len() int {
	return len(h.items)
}

// Remove 删除全部同名标头，返回删除的数量。
func (h *HeaderList) Remove(name string) int {
	n := 0
	h.Retain(func(hd *Header) bool {
		if strings.EqualFold(hd.Name, name) {
			n++
			return false
		}
		return true
	})
	return n
}

// Retain 原地保留 keep 返回 true 的标头，顺序不变。
func (h *HeaderList) Retain(keep func(hd *Header) bool) {
	kept := h.items[:0]
	for i := range h.items {
		if keep(&h.items[i]) {
			kept = append(kept, h.items[i])
		}
	}
	// 释放被裁剪部分的字符串引用
	for i := len(kept); i < len(h.items); i++ {
		h.items[i] = Header{}
	}
	h.items = kept
}

// VisitAll 按顺序访问每个标头。
func (h *HeaderList) VisitAll(f func(name, value string)) {
	for i := range h.items {
		f(h.items[i].Name, h.items[i].Value)
	}
}

// AppendBytes 以 "Name: Value\r\n" 的线格式追加全部标头到 dst。
func (h *HeaderList) AppendBytes(dst []byte) []byte {
	for i := range h.items {
		dst = append(dst, h.items[i].Name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, h.items[i].Value...)
		dst = append(dst, '\r', '\n')
	}
	return dst
}

// Reset 清空列表。
func (h *HeaderList) Reset() {
	h.items = h.items[:0]
}
