package client

import "strings"

// NamespacePrefix marks every backend route. The configured base URL already
// ends with it, so callers' paths are stripped of it before composition.
const NamespacePrefix = "/api"

// IsAbsoluteURL reports whether path is already a fully-qualified link.
func IsAbsoluteURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// NormalizePath strips a leading namespace segment and guarantees exactly one
// leading slash.
//
//	/api/edge/nodes -> /edge/nodes
//	api/edge/nodes  -> /edge/nodes
//	edge/nodes      -> /edge/nodes
//	//edge/nodes    -> /edge/nodes
func NormalizePath(path string) string {
	p := "/" + strings.TrimLeft(path, "/")
	if p == NamespacePrefix {
		return "/"
	}
	if strings.HasPrefix(p, NamespacePrefix+"/") {
		p = p[len(NamespacePrefix):]
	}
	return "/" + strings.TrimLeft(p, "/")
}

// TrimBaseURL strips trailing slashes from a base URL.
func TrimBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// URL composes the request URL for path. Absolute URLs are returned verbatim.
func (c *Client) URL(path string) string {
	if IsAbsoluteURL(path) {
		return path
	}
	return c.baseURL + NormalizePath(path)
}

// RootURL composes a URL outside the API namespace, e.g. the backend's
// /health endpoint.
func (c *Client) RootURL(path string) string {
	return strings.TrimSuffix(c.baseURL, NamespacePrefix) + "/" + strings.TrimLeft(path, "/")
}
