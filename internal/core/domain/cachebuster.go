package domain

import (
	"strings"
	"time"
)

// CacheBuster pairs the newest member mtime with a short content digest.
type CacheBuster struct {
	Mtime time.Time
	Hash  string
}

// CacheBusterKey identifies an ordered tuple of virtual paths.
type CacheBusterKey string

// NewCacheBusterKey builds the key for the given virtual paths, order preserved.
func NewCacheBusterKey(vpaths ...string) CacheBusterKey {
	return CacheBusterKey(strings.Join(vpaths, "\x00"))
}
