package gateway

import (
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves a fixed asset tree from a directory. It is the
// peripheral collaborator that runs alongside the gateway on the same
// listening port; requests that do not hit the socket path land here.
type StaticHandler struct {
	fs     http.FileSystem
	logger *slog.Logger
}

// NewStaticHandler serves files from dir. logger may be nil.
func NewStaticHandler(dir string, logger *slog.Logger) *StaticHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticHandler{
		fs:     http.Dir(dir),
		logger: logger.With("component", "static"),
	}
}

// ServeHTTP implements http.Handler. Only GET and HEAD are served; "/"
// falls back to index.html.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := staticRelPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rel == "." {
		rel = "index.html"
	}

	f, err := h.fs.Open(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, rel, info.ModTime(), f)
}

// staticRelPath returns a sanitized relative path for a static file request.
// It rejects traversal and absolute-path tricks so static serving cannot
// escape the configured directory.
func staticRelPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// After prefix stripping, a leading "/" indicates an absolute-path
	// attempt (e.g. "//etc/passwd" => "/etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning to avoid "cleaning away"
	// traversal attempts and changing the meaning of the request path.
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "" || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	// Reject OS-absolute/volume paths after slash conversion.
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}
