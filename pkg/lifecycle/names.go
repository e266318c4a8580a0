package lifecycle

import "fmt"

// DefaultPrefix is the store name prefix of the attendance client.
const DefaultPrefix = "smartattend"

// Names are the current store names of one version.
type Names struct {
	Static  string
	Dynamic string
	Legacy  string
}

// StoreNames derives the store names for version.
func StoreNames(prefix, version string) Names {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Names{
		Static:  fmt.Sprintf("%s-static-v%s", prefix, version),
		Dynamic: fmt.Sprintf("%s-dynamic-v%s", prefix, version),
		Legacy:  fmt.Sprintf("%s-v%s", prefix, version),
	}
}

// Current reports whether name is one of the version's stores.
func (n Names) Current(name string) bool {
	return name == n.Static || name == n.Dynamic || name == n.Legacy
}

// DefaultManifest returns the application shell precached on install.
func DefaultManifest() []string {
	return []string{
		"/",
		"/index.html",
		"/static/js/bundle.js",
		"/static/css/main.css",
		"/manifest.json",
		"/assets/icon-192.png",
		"/assets/icon-512.png",
	}
}
