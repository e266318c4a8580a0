package route

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestPolicy_Classify(t *testing.T) {
	policy := NewPolicy(DefaultTables())

	tests := []struct {
		name   string
		url    string
		method string
		want   Strategy
	}{
		{"post bypasses", "https://app.example.com/api/attendance", "POST", Bypass},
		{"put bypasses", "https://app.example.com/index.html", "PUT", Bypass},
		{"extension scheme bypasses", "chrome-extension://abc/script.js", "GET", Bypass},
		{"data scheme bypasses", "data:text/plain,hello", "GET", Bypass},
		{"api is network-first", "https://app.example.com/api/students?class=5", "GET", NetworkFirst},
		{"dashboard is network-first", "https://app.example.com/dashboard/classes", "GET", NetworkFirst},
		{"attendance is network-first", "https://app.example.com/attendance", "GET", NetworkFirst},
		{"static under api stays network-first", "https://app.example.com/api/static/logo.png", "GET", NetworkFirst},
		{"js under api stays network-first", "https://app.example.com/api/export.js", "GET", NetworkFirst},
		{"static dir is cache-first", "https://app.example.com/static/js/bundle.js", "GET", CacheFirst},
		{"assets dir is cache-first", "https://app.example.com/assets/icon-192.png", "GET", CacheFirst},
		{"extension is cache-first", "https://app.example.com/favicon.ico", "GET", CacheFirst},
		{"css is cache-first", "http://localhost:5173/main.css", "GET", CacheFirst},
		{"root is stale-while-revalidate", "https://app.example.com/", "GET", StaleWhileRevalidate},
		{"html page is stale-while-revalidate", "https://app.example.com/login", "GET", StaleWhileRevalidate},
		{"empty method treated as GET", "https://app.example.com/login", "", StaleWhileRevalidate},
		{"lower-case get", "https://app.example.com/login", "get", StaleWhileRevalidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Classify(mustParse(t, tt.url), tt.method); got != tt.want {
				t.Errorf("Classify(%s, %s) = %v, want %v", tt.url, tt.method, got, tt.want)
			}
		})
	}
}

func TestPolicy_Classify_NilURL(t *testing.T) {
	if got := NewPolicy(DefaultTables()).Classify(nil, "GET"); got != Bypass {
		t.Errorf("Classify(nil) = %v, want bypass", got)
	}
}

func TestPolicy_CustomTables(t *testing.T) {
	policy := NewPolicy(Tables{
		NetworkFirst: []string{"/v2/", "  "},
		CacheFirst:   []string{".woff2"},
	})

	if got := policy.Classify(mustParse(t, "https://x/v2/report"), "GET"); got != NetworkFirst {
		t.Errorf("got %v, want network-first", got)
	}
	if got := policy.Classify(mustParse(t, "https://x/fonts/a.woff2"), "GET"); got != CacheFirst {
		t.Errorf("got %v, want cache-first", got)
	}
	if got := policy.Classify(mustParse(t, "https://x/api/students"), "GET"); got != StaleWhileRevalidate {
		t.Errorf("got %v, want stale-while-revalidate", got)
	}

	tables := policy.Tables()
	if len(tables.NetworkFirst) != 1 {
		t.Errorf("blank patterns should be dropped, got %v", tables.NetworkFirst)
	}
}

func TestStrategy_String(t *testing.T) {
	tests := map[Strategy]string{
		Bypass:               "bypass",
		NetworkFirst:         "network-first",
		CacheFirst:           "cache-first",
		StaleWhileRevalidate: "stale-while-revalidate",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), want)
		}
	}
}
