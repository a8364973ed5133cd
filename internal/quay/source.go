package quay

import (
	"context"
	"fmt"
	"log/slog"

	"quay2jira/internal/vuln"
)

// ImageSource is the security scan of one image tag.
type ImageSource struct {
	client *Client
	image  string
	tag    string

	resolved *Tag
}

// NewImageSource binds the client to image:tag.
func NewImageSource(client *Client, image, tag string) *ImageSource {
	return &ImageSource{client: client, image: image, tag: tag}
}

// FetchFeatures resolves the tag and returns the features of its manifest scan.
func (s *ImageSource) FetchFeatures(ctx context.Context) ([]vuln.Feature, error) {
	ref, err := s.client.Reference(s.image, s.tag)
	if err != nil {
		return nil, err
	}
	tag, err := s.Tag(ctx)
	if err != nil {
		return nil, err
	}
	desc := tag.Descriptor()
	slog.Debug("Resolved image tag", "image", ref.String(), "digest", desc.Digest, "media_type", desc.MediaType)
	features, err := s.client.Security(ctx, s.image, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch security scan of %s:%s: %w", s.image, s.tag, err)
	}
	return features, nil
}

// Tag resolves the bound tag once.
func (s *ImageSource) Tag(ctx context.Context) (Tag, error) {
	if s.resolved != nil {
		return *s.resolved, nil
	}
	tag, err := s.client.Tag(ctx, s.image, s.tag)
	if err != nil {
		return Tag{}, err
	}
	s.resolved = &tag
	return tag, nil
}

// PageURL is the Quay vulnerabilities page of the resolved tag.
func (s *ImageSource) PageURL(ctx context.Context) (string, error) {
	tag, err := s.Tag(ctx)
	if err != nil {
		return "", err
	}
	return s.client.VulnerabilitiesURL(s.image, tag), nil
}
