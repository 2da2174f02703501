package extract

import (
	"mime"
	"path"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/zdypro888/webarchive"
)

// indexName is the file name given to resources whose URL ends in a slash.
const indexName = "_unnamed_index"

// preferredExtensions overrides the system MIME table for common types,
// whose entries differ between hosts.
var preferredExtensions = map[string]string{
	"text/html":              "html",
	"text/plain":             "txt",
	"text/css":               "css",
	"text/javascript":        "js",
	"application/javascript": "js",
	"application/json":       "json",
	"application/xml":        "xml",
	"image/jpeg":             "jpg",
	"image/png":              "png",
	"image/gif":              "gif",
	"image/svg+xml":          "svg",
	"image/webp":             "webp",
	"font/woff":              "woff",
	"font/woff2":             "woff2",
}

// Extension returns the file extension, without a dot, used for resources
// of the given MIME type. Unknown types get "txt".
func Extension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "txt"
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return "txt"
	}
	return strings.TrimPrefix(exts[len(exts)-1], ".")
}

// Path returns the slash-separated path, relative to the output directory,
// that r is written to. The path is the part of the URL after "//"; a URL
// ending in a slash names a directory, so the file inside it is called
// _unnamed_index with an extension guessed from the MIME type. URLs with no
// "//" part, such as about: and data: URLs, are named by a UUID derived
// from the URL.
//
// The result never escapes the output directory.
func Path(r *webarchive.Resource) string {
	_, rest, ok := strings.Cut(r.URL, "//")
	if !ok {
		return unnamed(r)
	}
	if rest == "" || strings.HasSuffix(rest, "/") {
		rest += indexName + "." + Extension(r.MIMEType)
	}
	p := strings.TrimPrefix(path.Clean("/"+rest), "/")
	if p == "" {
		return unnamed(r)
	}
	return p
}

func unnamed(r *webarchive.Resource) string {
	return uuid.NewV5(uuid.NamespaceURL, r.URL).String() + "." + Extension(r.MIMEType)
}
