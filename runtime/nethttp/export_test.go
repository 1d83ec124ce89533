package nethttp

var (
	ServeListener  = serveListener
	UnescapeParams = unescapeParams
)
