package aws

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MediaStore uploads catalog images to S3 and returns their public URL.
// Image bytes are never inspected.
type MediaStore struct {
	client  S3API
	bucket  string
	baseURL string
	prefix  string
	nowFunc func() time.Time
}

// NewMediaStore returns a MediaStore. baseURL is the public prefix objects are
// served from (a CDN or the bucket website); when empty the virtual-hosted S3
// URL for region is used.
func NewMediaStore(client S3API, bucket, region, baseURL string) *MediaStore {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &MediaStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "products",
		nowFunc: time.Now,
	}
}

// Upload stores body under a collision-free key derived from name and returns
// the public URL of the object.
func (m *MediaStore) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	key := m.objectKey(name)
	input := &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := m.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return m.baseURL + "/" + key, nil
}

func (m *MediaStore) objectKey(name string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return path.Join(m.prefix, m.nowFunc().UTC().Format("2006/01"), uuid.NewString()[:8]+"-"+base)
}
