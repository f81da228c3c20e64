package web

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const assetCacheControl = "public, max-age=3600"

// assetExtensions are tried in order when a reference has no extension.
var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".mp3", ".ogg", ".wav", ".m4a"}

// Content types the browser needs exactly; everything else goes through
// mime.TypeByExtension.
const (
	contentTypePNG = "image/png"
	contentTypeMP3 = "audio/mpeg"
	contentTypeOGG = "audio/ogg"
	contentTypeWAV = "audio/wav"
	contentTypeM4A = "audio/mp4"
)

// assetCandidates validates the request path and returns the files it may
// refer to, all inside AssetsDir.
func (s *Server) assetCandidates(prefix, urlPath string) ([]string, bool) {
	if s.AssetsDir == "" || !strings.HasPrefix(urlPath, prefix) {
		return nil, false
	}
	name := strings.Trim(strings.TrimPrefix(urlPath, prefix), "/")
	if name == "" {
		return nil, false
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, false
	}
	base, err := filepath.Abs(s.AssetsDir)
	if err != nil {
		return nil, false
	}
	resolved := filepath.Join(base, clean)
	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}

	candidates := []string{resolved}
	if filepath.Ext(resolved) == "" {
		for _, ext := range assetExtensions {
			candidates = append(candidates, resolved+ext)
		}
	}
	return candidates, true
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return contentTypePNG
	case ".mp3":
		return contentTypeMP3
	case ".ogg":
		return contentTypeOGG
	case ".wav":
		return contentTypeWAV
	case ".m4a":
		return contentTypeM4A
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// handleAsset serves images and sounds referenced by file name from
// AssetsDir. URL shape: /assets/<name>; names without an extension are
// tried against the known image and audio extensions.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	candidates, ok := s.assetCandidates("/assets/", r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	for _, p := range candidates {
		f, err := os.Open(p) // #nosec G304 -- p is under the validated assets dir
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			_ = f.Close()
			continue
		}
		defer f.Close()
		w.Header().Set("Content-Type", contentTypeFor(p))
		w.Header().Set("Cache-Control", assetCacheControl)
		http.ServeContent(w, r, filepath.Base(p), info.ModTime(), f)
		return
	}
	http.NotFound(w, r)
}
