// Package policy provides an environment-configured delegate implementation:
// a substring blocklist served as 403 responses, an optional local override
// directory, a fixed cache mode, and static blocking/cookie flags. It is the
// delegate the bridge daemon attaches to every page it manages.
package policy

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

// Options configures a Rules delegate.
type Options struct {
	CacheMode               delegate.CacheMode
	BlockContentURLs        bool
	BlockFileURLs           bool
	BlockNetworkLoads       bool
	AcceptThirdPartyCookies bool

	// Blocklist entries are matched as substrings against the request URL.
	Blocklist []string

	// InterceptDir maps request URL paths onto local files; a hit replaces
	// the network response with the file's contents.
	InterceptDir string
}

// Rules is an immutable delegate. All answers are precomputed or derived
// from read-only state, so calls from concurrent request handlers need no
// locking.
type Rules struct {
	opts Options
}

// New builds a Rules delegate, dropping empty blocklist entries.
func New(opts Options) *Rules {
	cleaned := make([]string, 0, len(opts.Blocklist))
	for _, pattern := range opts.Blocklist {
		if p := strings.TrimSpace(pattern); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	opts.Blocklist = cleaned
	return &Rules{opts: opts}
}

func (r *Rules) CacheMode() delegate.CacheMode       { return r.opts.CacheMode }
func (r *Rules) ShouldBlockContentURLs() bool        { return r.opts.BlockContentURLs }
func (r *Rules) ShouldBlockFileURLs() bool           { return r.opts.BlockFileURLs }
func (r *Rules) ShouldBlockNetworkLoads() bool       { return r.opts.BlockNetworkLoads }
func (r *Rules) ShouldAcceptThirdPartyCookies() bool { return r.opts.AcceptThirdPartyCookies }

// ShouldInterceptRequest serves a 403 for blocklisted URLs and local file
// contents for intercept-directory hits. Anything else passes through.
func (r *Rules) ShouldInterceptRequest(_ context.Context, req *webrequest.Request) *webrequest.Response {
	for _, pattern := range r.opts.Blocklist {
		if strings.Contains(req.URL, pattern) {
			slog.Info("policy blocked request", "url", req.URL, "pattern", pattern)
			var headers webrequest.HeaderList
			headers.Add("Content-Type", "text/plain")
			return &webrequest.Response{
				MimeType:     "text/plain",
				Encoding:     "utf-8",
				StatusCode:   403,
				ReasonPhrase: "Forbidden",
				Headers:      headers,
				Body:         strings.NewReader("blocked by policy\n"),
			}
		}
	}

	if r.opts.InterceptDir != "" {
		if resp := r.serveOverride(req.URL); resp != nil {
			return resp
		}
	}

	return nil
}

// serveOverride resolves the request path inside the intercept directory.
// Path traversal outside the directory is rejected.
func (r *Rules) serveOverride(rawURL string) *webrequest.Response {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return nil
	}

	rel := path.Clean("/" + u.Path)
	local := filepath.Join(r.opts.InterceptDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(local, filepath.Clean(r.opts.InterceptDir)+string(filepath.Separator)) {
		return nil
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return nil
	}

	mime := mimeForExtension(filepath.Ext(local))
	slog.Info("policy intercepted request", "url", rawURL, "file", local, "mime", mime)
	var headers webrequest.HeaderList
	headers.Add("Content-Type", mime)
	return &webrequest.Response{
		MimeType:     mime,
		Encoding:     "utf-8",
		StatusCode:   200,
		ReasonPhrase: "OK",
		Headers:      headers,
		Body:         bytes.NewReader(data),
	}
}

// OnReceivedResponseHeaders logs observed responses at debug level.
func (r *Rules) OnReceivedResponseHeaders(_ context.Context, req *webrequest.Request, info *webrequest.ResponseInfo) {
	slog.Debug("policy observed response headers",
		"url", req.URL,
		"status", info.StatusCode,
		"mime", info.MimeType,
		"headers", len(info.Headers),
	)
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return "text/html"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
