package ratelimit

import (
	"strings"
)

// unlimitedRoutes are never rate limited.
var unlimitedRoutes = []EndpointConfig{
	{Path: "/health", Method: "GET"},
}

// Match ranks, weakest first.
const (
	noMatch = iota
	prefixMatch
	wildcardMatch
	exactMatch
)

// MatchEndpoint returns the configuration that governs a request, or nil when
// the default limit applies.
//
// Patterns follow the router's syntax: a {name} segment matches any one path
// segment and a pattern ending in "/" matches every path below it. An empty
// Method matches any method. Exact patterns beat wildcard patterns, which beat
// prefixes; among prefixes the longest wins.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	for _, route := range unlimitedRoutes {
		if route.Path == path && route.Method == method {
			return &EndpointConfig{Path: path, Method: method}
		}
	}

	var best *EndpointConfig
	bestRank := noMatch
	for i := range configs {
		config := &configs[i]
		if config.Method != "" && config.Method != method {
			continue
		}
		rank := matchRank(config.Path, path)
		if rank == noMatch {
			continue
		}
		if rank > bestRank || (rank == prefixMatch && rank == bestRank && len(config.Path) > len(best.Path)) {
			best, bestRank = config, rank
		}
	}
	return best
}

func matchRank(pattern, path string) int {
	if pattern == path {
		return exactMatch
	}
	if strings.HasSuffix(pattern, "/") {
		if strings.HasPrefix(path, pattern) {
			return prefixMatch
		}
		return noMatch
	}
	if !strings.Contains(pattern, "{") {
		return noMatch
	}

	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return noMatch
	}
	for i, seg := range want {
		if isWildcard(seg) {
			if got[i] == "" {
				return noMatch
			}
			continue
		}
		if seg != got[i] {
			return noMatch
		}
	}
	return wildcardMatch
}

func isWildcard(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
