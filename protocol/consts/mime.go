package consts

import (
	"mime"
	"path"
	"strings"
)

var contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".json":  "application/json",
	".js":    "application/javascript",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".eot":   "font/eot",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".xml":   "text/xml",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".gz":    "application/x-gzip",
}

// ContentTypeByPath 按文件扩展名推断内容类型，未知扩展名返回 text/plain。
func ContentTypeByPath(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return ContentTypePlain
}
