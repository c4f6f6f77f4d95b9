package route

import (
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/protocol/consts"
)

// Router 定义路由器接口。
type Router interface {
	Use(app.Filter) Router
	Handle(consts.Method, string, app.RequestFunc) *app.CallbackHandler
	Any(string, app.RequestFunc) *app.CallbackHandler
	GET(string, app.RequestFunc) *app.CallbackHandler
	POST(string, app.RequestFunc) *app.CallbackHandler
	DELETE(string, app.RequestFunc) *app.CallbackHandler
	PATCH(string, app.RequestFunc) *app.CallbackHandler
	PUT(string, app.RequestFunc) *app.CallbackHandler
	OPTIONS(string, app.RequestFunc) *app.CallbackHandler
	HEAD(string, app.RequestFunc) *app.CallbackHandler
	Static(string, string) *app.StaticHandler
	StaticFS(string, fs.FS) *app.StaticHandler
}

// Routers 定义路由器接口，包括单路由和分组路由。
type Routers interface {
	Router
	Group(string) *RouterGroup
}

// RouterGroup 表示一个路由组，由前缀路径和过滤器组成。
//
// 组内注册的处理器按注册顺序追加到引擎的处理器列表，匹配时先到先得。
type RouterGroup struct {
	basePath string
	filter   app.Filter
	engine   *Engine
	root     bool
}

var _ Routers = (*RouterGroup)(nil)

// BasePath 获取路由组的基本路径，即这组路由的共同前缀。
func (group *RouterGroup) BasePath() string {
	return group.basePath
}

// Group 创建分组路由，子分组继承当前分组的过滤器。
func (group *RouterGroup) Group(relativePath string) *RouterGroup {
	return &RouterGroup{
		basePath: joinPaths(group.basePath, relativePath),
		filter:   group.filter,
		engine:   group.engine,
	}
}

// Use 设置分组的过滤器，作用于之后注册的处理器。多次调用时全部过滤器都需通过。
func (group *RouterGroup) Use(filter app.Filter) Router {
	if prev := group.filter; prev != nil {
		group.filter = func(r *app.Request) bool { return prev(r) && filter(r) }
	} else {
		group.filter = filter
	}
	return group.asObject()
}

// Handle 注册一个匹配方法掩码 method 的回调处理器。
func (group *RouterGroup) Handle(method consts.Method, relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	if method == 0 {
		panic("http 请求方法掩码不能为 0")
	}
	h := app.NewCallbackHandler(group.calculateAbsolutePath(relativePath), method, group.engine.wrap(fn))
	if group.filter != nil {
		h.SetFilter(group.filter)
	}
	group.engine.AddHandler(h)
	return h
}

// Any 注册一条支持所有标准请求方法的路由。
func (group *RouterGroup) Any(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodAny, relativePath, fn)
}

// GET 注册一条 GET 路由，是 Handle(consts.MethodGet, relativePath, fn) 的快捷方式。
func (group *RouterGroup) GET(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodGet, relativePath, fn)
}

// POST 注册一条 POST 路由。
func (group *RouterGroup) POST(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodPost, relativePath, fn)
}

// DELETE 注册一条 DELETE 路由。
func (group *RouterGroup) DELETE(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodDelete, relativePath, fn)
}

// PATCH 注册一条 PATCH 路由。
func (group *RouterGroup) PATCH(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodPatch, relativePath, fn)
}

// PUT 注册一条 PUT 路由。
func (group *RouterGroup) PUT(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodPut, relativePath, fn)
}

// OPTIONS 注册一条 OPTIONS 路由。
func (group *RouterGroup) OPTIONS(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodOptions, relativePath, fn)
}

// HEAD 注册一条 HEAD 路由。
func (group *RouterGroup) HEAD(relativePath string, fn app.RequestFunc) *app.CallbackHandler {
	return group.Handle(consts.MethodHead, relativePath, fn)
}

// Static 文件夹服务，并监听目录变动。用法：router.Static("/static", "/var/www")
func (group *RouterGroup) Static(relativePath string, root string) *app.StaticHandler {
	h := group.engine.ServeDir(group.calculateAbsolutePath(relativePath), root, "")
	if group.filter != nil {
		h.SetFilter(group.filter)
	}
	return h
}

// StaticFS 用法同 Static()，但使用任意的 fs.FS。
func (group *RouterGroup) StaticFS(relativePath string, fsys fs.FS) *app.StaticHandler {
	h := group.engine.ServeStatic(group.calculateAbsolutePath(relativePath), fsys, "/", "")
	if group.filter != nil {
		h.SetFilter(group.filter)
	}
	return h
}

func (group *RouterGroup) asObject() Routers {
	if group.root {
		return group.engine
	}
	return group
}

// calculateAbsolutePath 拼接分组前缀。根分组保持原样，以保留空串匹配全部路径的语义；
// 正则路由的前缀插入到 "^" 之后。
func (group *RouterGroup) calculateAbsolutePath(relativePath string) string {
	if group.basePath == "" || group.basePath == "/" {
		return relativePath
	}
	if strings.HasPrefix(relativePath, "^") {
		return "^" + regexp.QuoteMeta(strings.TrimSuffix(group.basePath, "/")) + relativePath[1:]
	}
	return joinPaths(group.basePath, relativePath)
}

func joinPaths(absolutePath, relativePath string) string {
	if relativePath == "" {
		return absolutePath
	}

	finalPath := path.Join(absolutePath, relativePath)
	appendSlash := lastChar(relativePath) == '/' && lastChar(finalPath) != '/'
	if appendSlash {
		return finalPath + "/"
	}
	return finalPath
}

func lastChar(s string) uint8 {
	if s == "" {
		panic("字符串长度不能为 0")
	}
	return s[len(s)-1]
}
