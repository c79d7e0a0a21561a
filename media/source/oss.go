package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/leeforge/imagepipe/media/processor"
)

// objectStore is the subset of *oss.Bucket used by OSSProvider.
type objectStore interface {
	objectReader
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
}

// OSSProvider resolves object keys in an Aliyun OSS bucket
type OSSProvider struct {
	bucket     objectStore
	bucketName string
	domain     string // Custom domain or CDN domain
}

// NewOSSProvider creates a new OSS provider
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSProvider(endpoint, accessKeyID, accessKeySecret, bucketName, domain string) (*OSSProvider, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	// Use bucket domain if custom domain is not provided
	if domain == "" {
		domain = fmt.Sprintf("https://%s.%s", bucketName, endpoint)
	}
	return newOSSProvider(bucket, bucketName, domain), nil
}

func newOSSProvider(bucket objectStore, bucketName, domain string) *OSSProvider {
	if domain != "" && !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}
	return &OSSProvider{
		bucket:     bucket,
		bucketName: bucketName,
		domain:     strings.TrimSuffix(domain, "/"),
	}
}

// objectKey removes a leading slash to avoid an empty folder
func objectKey(key string) string {
	return strings.TrimPrefix(key, "/")
}

// Resolve returns a source that fetches the object on every Open
func (p *OSSProvider) Resolve(ctx context.Context, key string) (processor.Source, error) {
	k := objectKey(key)
	if k == "" {
		return nil, fmt.Errorf("oss provider: empty key")
	}
	return &OSSSource{
		bucket: p.bucket,
		name:   fmt.Sprintf("%s://%s/%s", SchemeOSS, p.bucketName, k),
		key:    k,
	}, nil
}

// Upload saves a file to OSS and returns its public URL
func (p *OSSProvider) Upload(ctx context.Context, file io.Reader, key string) (string, error) {
	k := objectKey(key)
	if err := p.bucket.PutObject(k, file, oss.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("failed to upload to OSS: %w", err)
	}
	return fmt.Sprintf("%s/%s", p.domain, k), nil
}

// Exists checks if an object exists in OSS
func (p *OSSProvider) Exists(ctx context.Context, key string) (bool, error) {
	return p.bucket.IsObjectExist(objectKey(key), oss.WithContext(ctx))
}

func (p *OSSProvider) Name() string {
	return SchemeOSS
}
