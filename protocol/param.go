package protocol

// Param 是一个请求参数。
//
// 查询串参数 IsForm 为 false；urlencoded 正文中的字段 IsForm 为 true；
// 上传的文件部分 IsFile 为 true，此时 Value 为文件名，Size 为字节数，
// ContentType 为该部分声明的内容类型。
type Param struct {
	Name        string
	Value       string
	IsForm      bool
	IsFile      bool
	Size        int
	ContentType string
}

// ParamList 是按加入顺序保存的参数列表。
type ParamList struct {
	items []Param
}

// Add 追加一个参数。
func (l *ParamList) Add(p Param) {
	l.items = append(l.items, p)
}

// Get 返回第一个名称与类型均匹配的参数，不存在返回 nil。参数名区分大小写。
func (l *ParamList) Get(name string, isForm, isFile bool) *Param {
	for i := range l.items {
		p := &l.items[i]
		if p.Name == name && p.IsForm == isForm && p.IsFile == isFile {
			return p
		}
	}
	return nil
}

// Lookup 返回第一个名称匹配的参数，不区分参数类型。
func (l *ParamList) Lookup(name string) *Param {
	for i := range l.items {
		if l.items[i].Name == name {
			return &l.items[i]
		}
	}
	return nil
}

// At 返回第 i 个参数，越界返回 nil。
func (l *ParamList) At(i int) *Param {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return &l.items[i]
}

// Len 返回参数数量。
func (l *ParamList) Len() int {
	return len(l.items)
}

// VisitAll 按顺序访问每个参数。
func (l *ParamList) VisitAll(f func(p *Param)) {
	for i := range l.items {
		f(&l.items[i])
	}
}

// Reset 清空列表。
func (l *ParamList) Reset() {
	l.items = l.items[:0]
}
