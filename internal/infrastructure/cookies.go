package infrastructure

import "os"

// CookieResolver locates an optional session-cookie file on disk. The
// file enables access to restricted media; its absence is a valid and
// common state, not an error.
type CookieResolver struct {
	candidates []string
}

// NewCookieResolver creates a resolver over an ordered list of
// candidate cookie-file paths.
func NewCookieResolver(candidates []string) *CookieResolver {
	return &CookieResolver{candidates: candidates}
}

// Locate returns the first candidate that exists on disk.
func (r *CookieResolver) Locate() (string, bool) {
	for _, path := range r.candidates {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Args returns the extraction-tool arguments for the resolved cookie
// file, or nil when no cookie file exists.
func (r *CookieResolver) Args() []string {
	path, ok := r.Locate()
	if !ok {
		return nil
	}
	return []string{"--cookies", path}
}
