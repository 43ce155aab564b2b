package ratelimit

import "strings"

// MatchEndpoint returns the configuration whose pattern matches path and
// method, or nil. GET /health always matches an unlimited entry.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{Path: "/health", Method: "GET"}
	}

	segments := splitPath(path)
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method == method && matchSegments(splitPath(cfg.Path), segments) {
			return cfg
		}
	}
	return nil
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != path[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
