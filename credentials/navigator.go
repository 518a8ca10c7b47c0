package credentials

import (
	"strings"
	"sync"
)

// Navigator is the routing collaborator a forced logout redirects through.
type Navigator interface {
	CurrentPath() string
	Redirect(path string)
}

type MemoryNavigator struct {
	mu        sync.Mutex
	path      string
	redirects []string
}

func NewMemoryNavigator(path string) *MemoryNavigator {
	return &MemoryNavigator{path: path}
}

func (n *MemoryNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *MemoryNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
}

func (n *MemoryNavigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.redirects = append(n.redirects, path)
}

func (n *MemoryNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

// IsPublicPath matches path against public prefixes on segment boundaries,
// so "/login" covers "/login/otp" but not "/loginx".
func IsPublicPath(publicPaths []string, path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	for _, prefix := range publicPaths {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

var _ Navigator = (*MemoryNavigator)(nil)
