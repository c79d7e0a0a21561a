package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	apperrors "github.com/leeforge/imagepipe/errors"
	"github.com/leeforge/imagepipe/media/processor"
)

// Handle schemes understood by the Resolver.
const (
	SchemeFile = "file"
	SchemeOSS  = "oss"
)

// Provider 存储提供者接口
type Provider interface {
	Name() string
	Resolve(ctx context.Context, key string) (processor.Source, error)
	Upload(ctx context.Context, file io.Reader, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 来源配置
type Config struct {
	// BasePath is where relative file handles are resolved.
	BasePath string    `mapstructure:"base-path" json:"basePath" yaml:"base-path" default:"."`
	OSS      OSSConfig `mapstructure:"oss" json:"oss" yaml:"oss"`
}

// OSSConfig 阿里云 OSS 配置
type OSSConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"accessKeyId" yaml:"access-key-id" validate:"required_if=Enabled true"`
	AccessKeySecret string `mapstructure:"access-key-secret" json:"-" yaml:"access-key-secret" validate:"required_if=Enabled true"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket" validate:"required_if=Enabled true"`
	Domain          string `mapstructure:"domain" json:"domain" yaml:"domain"`
}

// Resolver 按 scheme 分发到对应的提供者
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewResolver creates a resolver with the given providers, keyed by Name.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register 注册提供者
func (r *Resolver) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get 获取提供者
func (r *Resolver) Get(scheme string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[scheme]
	if !ok {
		return nil, apperrors.NewInvalid("scheme", scheme, "no provider registered")
	}
	return p, nil
}

// Split separates a handle into scheme and key. Handles without a scheme
// are local paths.
func Split(handle string) (scheme, key string) {
	if s, k, ok := strings.Cut(handle, "://"); ok && s != "" {
		return strings.ToLower(s), k
	}
	return SchemeFile, handle
}

// Resolve maps a handle such as "oss://photos/a.jpg", "file://in/a.jpg"
// or "in/a.jpg" to a source.
func (r *Resolver) Resolve(ctx context.Context, handle string) (processor.Source, error) {
	scheme, key := Split(handle)
	p, err := r.Get(scheme)
	if err != nil {
		return nil, err
	}
	src, err := p.Resolve(ctx, key)
	if err != nil {
		return nil, apperrors.NewSourceUnavailable(handle, err)
	}
	return src, nil
}

// ResolverFromConfig 从配置创建 Resolver
func ResolverFromConfig(config Config) (*Resolver, error) {
	local, err := NewLocalProvider(config.BasePath)
	if err != nil {
		return nil, err
	}
	r := NewResolver(local)

	if config.OSS.Enabled {
		o := config.OSS
		provider, err := NewOSSProvider(o.Endpoint, o.AccessKeyID, o.AccessKeySecret, o.Bucket, o.Domain)
		if err != nil {
			return nil, fmt.Errorf("oss provider: %w", err)
		}
		r.Register(provider)
	}
	return r, nil
}
