package consts

// 服务器识别或输出的标头名称。
const (
	HeaderHost               = "Host"
	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderContentEncoding    = "Content-Encoding"
	HeaderContentDisposition = "Content-Disposition"
	HeaderTransferEncoding   = "Transfer-Encoding"
	HeaderConnection         = "Connection"
	HeaderExpect             = "Expect"
	HeaderAuthorization      = "Authorization"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderAccept             = "Accept"
	HeaderAcceptEncoding     = "Accept-Encoding"
	HeaderCookie             = "Cookie"
	HeaderLocation           = "Location"
	HeaderLastModified       = "Last-Modified"
	HeaderIfModifiedSince    = "If-Modified-Since"
	HeaderCacheControl       = "Cache-Control"
	HeaderETag               = "ETag"
	HeaderIfNoneMatch        = "If-None-Match"
	HeaderLastEventID        = "Last-Event-ID"
)

// 常用的标头取值与内容类型。
const (
	ContentTypeForm        = "application/x-www-form-urlencoded"
	ContentTypeMultipart   = "multipart/form-data"
	ContentTypePlain       = "text/plain"
	ContentTypeHTML        = "text/html"
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"

	ExpectContinue   = "100-continue"
	ChunkedEncoding  = "chunked"
	ConnectionClose  = "close"
	WebSocketUpgrade = "websocket"

	// ContinueResponse 是对 Expect: 100-continue 的临时应答。
	ContinueResponse = "HTTP/1.1 100 Continue\r\n\r\n"

	// InterestingAny 作为关注标头时保留全部标头。
	InterestingAny = "ANY"
)

const (
	// DefaultIndexFile 是静态目录的默认文件。
	DefaultIndexFile = "index.htm"

	// GzipSuffix 是预压缩文件的后缀。
	GzipSuffix = ".gz"

	// TemplatePlaceholder 是模板占位符的定界字符。
	TemplatePlaceholder = '%'

	// TemplateParamNameLength 是占位符名称的最大长度，超出则按字面量输出。
	TemplateParamNameLength = 32
)
