package app

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/favbox/asyncweb/common/compress"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/protocol/http1/resp"
	"github.com/fsnotify/fsnotify"
)

// StaticHandler 把 uri 下的请求映射到文件系统中的文件。
//
// 请求路径去掉 uri 前缀后拼接到 root 目录下；目录请求返回默认文件。
// 文件不存在时尝试预压缩的 .gz 文件。已解析的路径会被缓存，
// 通过 Watch 监听目录后，文件变动会清空缓存。
type StaticHandler struct {
	HandlerBase
	fsys         fs.FS
	uri          string
	root         string
	isDir        bool
	defaultFile  string
	cacheControl string
	lastModified string
	template     resp.TemplateProcessor

	mu      sync.Mutex
	cache   map[string]staticEntry
	watcher *fsnotify.Watcher
}

type staticEntry struct {
	name    string
	gzipped bool
}

// staticFile 是 CanHandle 打开、HandleRequest 发送的文件。
type staticFile struct {
	f       fs.File
	name    string
	gzipped bool
	size    int64
}

// NewStaticHandler 创建静态文件处理器。root 是 fsys 中的目录或文件，以 "/" 结尾表示目录。
func NewStaticHandler(uri string, fsys fs.FS, root, cacheControl string) *StaticHandler {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	h := &StaticHandler{
		fsys:         fsys,
		uri:          strings.TrimSuffix(uri, "/"),
		isDir:        root == "" || strings.HasSuffix(root, "/"),
		defaultFile:  consts.DefaultIndexFile,
		cacheControl: cacheControl,
		cache:        make(map[string]staticEntry),
	}
	h.root = strings.Trim(root, "/")
	if h.root == "" {
		h.root = "."
	}
	return h
}

// SetIsDir 声明 root 是否为目录，目录的根请求直接查找默认文件。
func (h *StaticHandler) SetIsDir(isDir bool) *StaticHandler {
	h.isDir = isDir
	return h
}

// SetDefaultFile 设置目录的默认文件，空串表示不查找默认文件。
func (h *StaticHandler) SetDefaultFile(name string) *StaticHandler {
	h.defaultFile = name
	h.invalidate()
	return h
}

// SetCacheControl 设置 Cache-Control，非空时同时启用 ETag。
func (h *StaticHandler) SetCacheControl(v string) *StaticHandler {
	h.cacheControl = v
	return h
}

// SetLastModified 设置 Last-Modified，请求的 If-Modified-Since 与之相同时应答 304。
func (h *StaticHandler) SetLastModified(t time.Time) *StaticHandler {
	return h.SetLastModifiedString(t.UTC().Format(http.TimeFormat))
}

// SetLastModifiedString 以原始字符串设置 Last-Modified。
func (h *StaticHandler) SetLastModifiedString(v string) *StaticHandler {
	h.lastModified = v
	return h
}

// SetTemplateProcessor 设置模板处理器，预压缩文件不做替换。
func (h *StaticHandler) SetTemplateProcessor(p resp.TemplateProcessor) *StaticHandler {
	h.template = p
	return h
}

func (h *StaticHandler) CanHandle(r *Request) bool {
	if !r.Method().Has(consts.MethodGet|consts.MethodHead) ||
		!strings.HasPrefix(r.URL(), h.uri) ||
		!r.IsExpectedConnType(protocol.ConnTypeDefault, protocol.ConnTypeHTTP) {
		return false
	}
	if !h.getFile(r) {
		return false
	}
	if h.lastModified != "" {
		r.AddInterestingHeader(consts.HeaderIfModifiedSince)
	}
	if h.cacheControl != "" {
		r.AddInterestingHeader(consts.HeaderIfNoneMatch)
	}
	return true
}

func (h *StaticHandler) getFile(r *Request) bool {
	url := r.URL()
	h.mu.Lock()
	e, ok := h.cache[url]
	h.mu.Unlock()
	if ok {
		if h.openEntry(r, e) {
			return true
		}
		h.mu.Lock()
		delete(h.cache, url)
		h.mu.Unlock()
	}

	rel := url[len(h.uri):]
	canSkipFileCheck := (h.isDir && rel == "") || strings.HasSuffix(rel, "/")
	clean := path.Clean("/" + rel)
	name := path.Join(h.root, clean[1:])
	if !canSkipFileCheck && h.open(r, url, name) {
		return true
	}
	if h.defaultFile == "" {
		return false
	}
	return h.open(r, url, path.Join(name, h.defaultFile))
}

func (h *StaticHandler) open(r *Request, url, name string) bool {
	f, gzipped, err := resp.OpenFile(h.fsys, name)
	if err != nil {
		return false
	}
	if !h.attach(r, f, name, gzipped) {
		return false
	}
	h.mu.Lock()
	h.cache[url] = staticEntry{name: name, gzipped: gzipped}
	h.mu.Unlock()
	return true
}

func (h *StaticHandler) openEntry(r *Request, e staticEntry) bool {
	name := e.name
	if e.gzipped {
		name += consts.GzipSuffix
	}
	f, err := h.fsys.Open(name)
	if err != nil {
		return false
	}
	return h.attach(r, f, e.name, e.gzipped)
}

// attach 把打开的文件交给请求，目录被拒绝。
func (h *StaticHandler) attach(r *Request, f fs.File, name string, gzipped bool) bool {
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return false
	}
	if r.TempFile != nil {
		_ = r.TempFile.Close()
	}
	r.TempFile = f
	r.TempObject = &staticFile{f: f, name: name, gzipped: gzipped, size: info.Size()}
	return true
}

func (h *StaticHandler) HandleRequest(r *Request) {
	sf, ok := r.TempObject.(*staticFile)
	if !ok {
		r.SendStatus(consts.StatusNotFound)
		return
	}
	// 文件的所有权转交给响应
	r.TempObject, r.TempFile = nil, nil

	etag := strconv.FormatInt(sf.size, 10)
	headers := r.HeaderList()
	switch {
	case h.lastModified != "" && h.lastModified == headers.Value(consts.HeaderIfModifiedSince):
		_ = sf.f.Close()
		r.SendStatus(consts.StatusNotModified)
	case h.cacheControl != "" && headers.Has(consts.HeaderIfNoneMatch) && headers.Value(consts.HeaderIfNoneMatch) == etag:
		_ = sf.f.Close()
		res := resp.NewStatus(consts.StatusNotModified)
		res.AddHeader(consts.HeaderCacheControl, h.cacheControl)
		res.AddHeader(consts.HeaderETag, etag)
		r.Send(res)
	default:
		res := resp.NewFromFile(sf.f, sf.name, "", false)
		if sf.gzipped {
			res.AddHeader(consts.HeaderContentEncoding, string(compress.EncodingGzip))
		} else if h.template != nil {
			res.WithTemplate(h.template)
		}
		if h.lastModified != "" {
			res.AddHeader(consts.HeaderLastModified, h.lastModified)
		}
		if h.cacheControl != "" {
			res.AddHeader(consts.HeaderCacheControl, h.cacheControl)
			res.AddHeader(consts.HeaderETag, etag)
		}
		r.Send(res)
	}
}

func (h *StaticHandler) invalidate() {
	h.mu.Lock()
	h.cache = make(map[string]staticEntry)
	h.mu.Unlock()
}

// Watch 监听操作系统目录 dir 及其子目录，文件变动时清空路径缓存。
// dir 应与构造时传入的 fsys 对应同一目录。
func (h *StaticHandler) Watch(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		hlog.SystemLogger().Debugf("[StaticHandler] 正在监视目录：%s", p)
		return watcher.Add(p)
	})
	if err != nil {
		_ = watcher.Close()
		return err
	}

	h.mu.Lock()
	old := h.watcher
	h.watcher = watcher
	h.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					hlog.SystemLogger().Debugf("[StaticHandler] 文件变动：%s，清空路径缓存", event.Name)
					h.invalidate()
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				hlog.SystemLogger().Errorf("[StaticHandler] 监视目录出错：%v", err)
			}
		}
	}()
	return nil
}

// cached 返回已缓存的路径数量。
func (h *StaticHandler) cached() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cache)
}

// Close 停止目录监听。
func (h *StaticHandler) Close() error {
	h.mu.Lock()
	w := h.watcher
	h.watcher = nil
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
