package quay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	apierrors "quay2jira/internal/errors"
	"quay2jira/internal/vuln"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// DefaultBaseURL is the public Quay.io endpoint.
const DefaultBaseURL = "https://quay.io/"

var (
	// ErrTagNotFound is returned when an image has no active tag with the requested name.
	ErrTagNotFound = errors.New("tag not found")
	// ErrNotScanned is returned when the security scan of a manifest is not available yet.
	ErrNotScanned = errors.New("manifest has not been scanned")
)

// Tag is an active image tag.
type Tag struct {
	Name           string `json:"name"`
	ManifestDigest string `json:"manifest_digest"`
	LastModified   string `json:"last_modified"`
	Size           int64  `json:"size"`
	IsManifestList bool   `json:"is_manifest_list"`
}

// Descriptor describes the manifest the tag points to.
func (t Tag) Descriptor() ocispec.Descriptor {
	mediaType := ocispec.MediaTypeImageManifest
	if t.IsManifestList {
		mediaType = ocispec.MediaTypeImageIndex
	}
	return ocispec.Descriptor{
		MediaType:   mediaType,
		Digest:      digest.Digest(t.ManifestDigest),
		Size:        t.Size,
		Annotations: map[string]string{ocispec.AnnotationRefName: t.Name},
	}
}

// Client reads repositories and security scans from the Quay API.
type Client struct {
	BaseURL    *url.URL
	Repository string
	HTTPClient *http.Client

	session string
}

// Option configures a Client.
type Option func(*Client)

// WithSession authenticates requests with a Quay browser session cookie.
func WithSession(session string) Option {
	return func(c *Client) { c.session = session }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient creates a client for repository (the Quay namespace) on baseURL.
func NewClient(baseURL, repository string, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid quay base url %q: %w", baseURL, err)
	}

	c := &Client{
		BaseURL:    u,
		Repository: repository,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reference is the pull reference of image:tag on this registry.
func (c *Client) Reference(image, tag string) (reference.NamedTagged, error) {
	named, err := reference.WithName(path.Join(c.BaseURL.Host, c.Repository, image))
	if err != nil {
		return nil, fmt.Errorf("invalid image name %q: %w", image, err)
	}
	tagged, err := reference.WithTag(named, tag)
	if err != nil {
		return nil, fmt.Errorf("invalid tag %q: %w", tag, err)
	}
	return tagged, nil
}

// ImageTags lists the first page of active tags of image.
func (c *Client) ImageTags(ctx context.Context, image string) ([]Tag, error) {
	q := url.Values{}
	q.Set("limit", "40")
	q.Set("page", "1")
	q.Set("onlyActiveTags", "true")

	var result struct {
		Tags []Tag `json:"tags"`
	}
	path := fmt.Sprintf("api/v1/repository/%s/%s/tag/", c.Repository, image)
	if err := c.get(ctx, "list tags", path, q, &result); err != nil {
		return nil, err
	}
	return result.Tags, nil
}

// Tag looks up the active tag called name.
func (c *Client) Tag(ctx context.Context, image, name string) (Tag, error) {
	tags, err := c.ImageTags(ctx, image)
	if err != nil {
		return Tag{}, err
	}
	for _, t := range tags {
		if t.Name == name {
			return t, nil
		}
	}
	return Tag{}, fmt.Errorf("%s/%s:%s: %w", c.Repository, image, name, ErrTagNotFound)
}

type securityResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Layer struct {
			Features []vuln.Feature `json:"Features"`
		} `json:"Layer"`
	} `json:"data"`
}

// Security fetches the scanned features of the manifest tag points to.
func (c *Client) Security(ctx context.Context, image string, tag Tag) ([]vuln.Feature, error) {
	d, err := digest.Parse(tag.ManifestDigest)
	if err != nil {
		return nil, fmt.Errorf("tag %s has invalid manifest digest: %w", tag.Name, err)
	}

	q := url.Values{}
	q.Set("vulnerabilities", "true")

	var result securityResponse
	path := fmt.Sprintf("api/v1/repository/%s/%s/manifest/%s/security", c.Repository, image, d)
	if err := c.get(ctx, "manifest security", path, q, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, fmt.Errorf("%s@%s (status %q): %w", image, d, result.Status, ErrNotScanned)
	}
	return result.Data.Layer.Features, nil
}

// VulnerabilitiesURL is the Quay web page listing the vulnerabilities of tag.
func (c *Client) VulnerabilitiesURL(image string, tag Tag) string {
	ref := &url.URL{
		Path:     fmt.Sprintf("repository/%s/%s/manifest/%s", c.Repository, image, tag.ManifestDigest),
		RawQuery: "tab=vulnerabilities",
	}
	return c.BaseURL.ResolveReference(ref).String()
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	u := c.BaseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: c.session})
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierrors.FromResponse("Quay", op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
