// Package source resolves image handles into readable sources for the
// processing pipeline.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/leeforge/imagepipe/media/processor"
)

var (
	_ processor.Source = (*FileSource)(nil)
	_ processor.Source = (*BytesSource)(nil)
	_ processor.Source = (*OSSSource)(nil)
)

// FileSource 本地文件
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

// Open 每次调用都从文件开头读取
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// BytesSource 内存数据
type BytesSource struct {
	name string
	data []byte
}

// NewBytesSource wraps data already in memory, e.g. an upload body.
func NewBytesSource(name string, data []byte) *BytesSource {
	return &BytesSource{name: name, data: data}
}

func (s *BytesSource) Name() string { return s.name }

func (s *BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// objectReader is the part of *oss.Bucket a source needs.
type objectReader interface {
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
}

// OSSSource 阿里云 OSS 对象
type OSSSource struct {
	bucket objectReader
	name   string
	key    string
}

func (s *OSSSource) Name() string { return s.name }

// Open 发起一次新的 GetObject 请求
func (s *OSSSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := s.bucket.GetObject(s.key, oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from OSS: %w", s.key, err)
	}
	return body, nil
}
