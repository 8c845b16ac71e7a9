// Package env abstracts read access to process environment variables.
package env

import (
	"os"
	"strings"
)

// Provider looks up environment variables.
type Provider interface {
	Lookup(key string) (string, bool)
}

// OS reads the current process environment.
type OS struct{}

// Lookup implements Provider via os.LookupEnv.
func (OS) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Map is a fixed environment, mostly for tests.
type Map map[string]string

// Lookup implements Provider.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Get returns the value of key or "" when unset.
func Get(p Provider, key string) string {
	if p == nil {
		return ""
	}
	v, _ := p.Lookup(key)
	return v
}

// NonBlank returns the value of key when it is set and not only whitespace.
func NonBlank(p Provider, key string) (string, bool) {
	v := Get(p, key)
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
