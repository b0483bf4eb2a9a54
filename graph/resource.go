package graph

import (
	"fmt"
	"net/http"
	"strings"
)

// API versions accepted by ResourceConfig and Client.
const (
	// VersionV1 is the stable surface.
	VersionV1 = "v1.0"
	// VersionBeta is the preview surface.
	VersionBeta = "beta"
)

// ResourceConfig is an immutable description of one resource request: which
// path template to hit, with which slot values, against which endpoint and
// version. The With* methods return modified copies.
//
// Template slots follow the generated-client convention: "{RID}" is the
// resource-scoped identifier bound when the resource client was built,
// "{id}" is the first free slot, then "{id2}", "{id3}", and so on.
type ResourceConfig struct {
	endpoint string
	version  string
	tag      string
	template string
	rid      string
	ids      []string
	headers  http.Header
}

// NewResource describes a resource by its identity tag and path template,
// e.g. NewResource("users", "/users/{id}/messages/{id2}").
func NewResource(tag, template string) ResourceConfig {
	return ResourceConfig{tag: tag, template: template}
}

// Tag returns the resource identity tag used for policy lookups.
func (rc ResourceConfig) Tag() string {
	return rc.tag
}

// WithRID binds the "{RID}" slot.
func (rc ResourceConfig) WithRID(rid string) ResourceConfig {
	rc.rid = rid
	return rc
}

// WithIDs binds the ordered "{id}", "{id2}", ... slots.
func (rc ResourceConfig) WithIDs(ids ...string) ResourceConfig {
	rc.ids = append(rc.ids[:len(rc.ids):len(rc.ids)], ids...)
	return rc
}

// WithVersion pins the config to an API version, overriding the client's.
func (rc ResourceConfig) WithVersion(version string) ResourceConfig {
	rc.version = version
	return rc
}

// WithEndpoint pins the config to an endpoint, overriding the client's.
func (rc ResourceConfig) WithEndpoint(endpoint string) ResourceConfig {
	rc.endpoint = endpoint
	return rc
}

// WithHeader attaches a request-scoped header.
func (rc ResourceConfig) WithHeader(key, value string) ResourceConfig {
	headers := make(http.Header, len(rc.headers)+1)
	for k, v := range rc.headers {
		headers[k] = v
	}
	headers.Set(key, value)
	rc.headers = headers
	return rc
}

// slotName returns the template slot for the i-th bound id.
func slotName(i int) string {
	if i == 0 {
		return "{id}"
	}
	return fmt.Sprintf("{id%d}", i+1)
}

// render resolves the template against the given defaults. Every slot the
// template references must be bound; an unresolved slot is a programmer
// error surfaced here, at request-build time.
func (rc ResourceConfig) render(defaultEndpoint, defaultVersion string) (string, error) {
	endpoint := rc.endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	version := rc.version
	if version == "" {
		version = defaultVersion
	}

	path := rc.template
	if rc.rid != "" {
		path = strings.ReplaceAll(path, "{RID}", rc.rid)
	}
	for i, id := range rc.ids {
		path = strings.ReplaceAll(path, slotName(i), id)
	}

	if i := strings.IndexByte(path, '{'); i >= 0 {
		end := strings.IndexByte(path[i:], '}')
		slot := path[i:]
		if end >= 0 {
			slot = path[i : i+end+1]
		}
		return "", fmt.Errorf("graph: unresolved template slot %s in %q", slot, rc.template)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(endpoint, "/") + "/" + version + path, nil
}
