package content

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/muurk/gemd/internal/gemini"
	"github.com/muurk/gemd/internal/logging"
	"go.uber.org/zap"
)

// DefaultMIME is served when no type can be derived from the resource.
const DefaultMIME = "text/gemini"

// DefaultPage is served when no resource file is configured.
const DefaultPage = "# Hello World\nTesting"

// Static serves one fixed resource for every request, whatever its path.
type Static struct {
	// Path of the file to serve; empty serves DefaultPage
	Path string
	// MIME overrides the type derived from Path's extension
	MIME string
}

// NewStatic returns a handler serving the file at path.
func NewStatic(path, mimeType string) *Static {
	return &Static{Path: path, MIME: mimeType}
}

// ServeGemini opens the resource afresh for each request so edits on disk
// are picked up without a restart.
func (s *Static) ServeGemini(req *gemini.Request) (*gemini.Response, error) {
	if s.Path == "" {
		return gemini.TextResponse(gemini.StatusSuccess, s.mimeType(), DefaultPage), nil
	}

	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Static resource missing",
			zap.String("path", s.Path),
			zap.String("url", req.Raw),
		)
		return gemini.StatusResponse(gemini.StatusNotFound, "not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}

	return &gemini.Response{
		Header: gemini.Header{Status: gemini.StatusSuccess, Meta: s.mimeType()},
		Body:   f,
	}, nil
}

func (s *Static) mimeType() string {
	if s.MIME != "" {
		return s.MIME
	}
	return MIMEForPath(s.Path)
}

// MIMEForPath maps a file name to a media type. Gemtext extensions are not
// in the system tables, so they are handled first.
func MIMEForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "", ".gmi", ".gemini":
		return DefaultMIME
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
