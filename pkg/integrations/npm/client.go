package npm

import (
	"context"
	"strings"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org/"

// Packument is the registry document describing every published version of
// a package.
type Packument struct {
	Name     string             `json:"name"`
	DistTags map[string]string  `json:"dist-tags,omitempty"`
	Versions map[string]Version `json:"versions"`
}

// Version is one entry of [Packument.Versions].
type Version struct {
	Name         string            `json:"name,omitempty"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Dist         Dist              `json:"dist"`
}

// Dist locates the tarball of a version.
type Dist struct {
	Tarball string `json:"tarball"`
	Shasum  string `json:"shasum,omitempty"`
}

// Client queries an npm-compatible registry.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a registry client for baseURL (DefaultRegistry when
// empty) on top of the shared HTTP client.
func NewClient(base *integrations.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultRegistry
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{Client: base, baseURL: baseURL}
}

// BaseURL returns the registry base URL, always ending in '/'.
func (c *Client) BaseURL() string { return c.baseURL }

// PackageURL returns the packument URL of name. Scoped names keep the '@'
// and have their '/' escaped.
func (c *Client) PackageURL(name string) string {
	return c.baseURL + integrations.EscapeName(name, true)
}

// Packument fetches the version list of name.
//
// A response without a "versions" object is a REGISTRY_RESPONSE error and
// is never cached.
func (c *Client) Packument(ctx context.Context, name string) (*Packument, error) {
	var doc Packument
	err := c.Cached(ctx, c.baseURL+name, false, &doc, func() error {
		if err := c.Get(ctx, c.PackageURL(name), &doc); err != nil {
			return err
		}
		if doc.Versions == nil {
			return errors.New(errors.ErrCodeRegistryResponse, "registry response for %s has no versions object", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// VersionStrings returns the keys of the versions map.
func (p *Packument) VersionStrings() []string {
	out := make([]string, 0, len(p.Versions))
	for v := range p.Versions {
		out = append(out, v)
	}
	return out
}
