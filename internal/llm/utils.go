package llm

import (
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/panel-extractor/constants"
)

// DataURL encodes the image as a base64 data URL for providers that take image_url parts.
func (img Image) DataURL() string {
	mt := img.MIME
	if mt == "" {
		mt = DetectMIME(img.Name, img.Data)
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DetectMIME picks a content type from the file extension, then from the bytes.
func DetectMIME(name string, data []byte) string {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if ext != "" {
		if mt := mime.TypeByExtension("." + ext); strings.HasPrefix(mt, "image/") {
			return mt
		}
		// fallbacks
		if mt := constants.MIMEForExt(ext); mt != "application/octet-stream" {
			return mt
		}
	}
	if len(data) > 0 {
		if mt := http.DetectContentType(data); strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	return "application/octet-stream"
}
