// Package storage 提供对象存储适配层
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scratch-edu-server/internal/config"
)

// MinIOStore MinIO 对象存储实现
// 客户端在进程启动时构造一次，之后只读复用
type MinIOStore struct {
	client *minio.Client // MinIO 客户端实例
	bucket string        // 存储桶名称
}

// NewMinIOStore 创建 MinIOStore 实例并确保存储桶存在
// 参数:
//   - cfg: MinIO 配置
//
// 返回:
//   - *MinIOStore: 存储实例
//   - error: 连接或建桶错误
func NewMinIOStore(cfg *config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	s := &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}

	// 确保存储桶存在
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// ensureBucket 检查存储桶是否存在，不存在则创建
func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("[INFO] bucket %q already exists", s.bucket)
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return err
	}
	log.Printf("[INFO] bucket %q created", s.bucket)
	return nil
}

// Put 上传对象
// 参数:
//   - ctx: 上下文
//   - objectName: 对象路径
//   - data: 二进制数据
//   - contentType: MIME 类型
//
// 返回:
//   - error: 上传错误
func (s *MinIOStore) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Get 下载对象
// 对象不存在时返回 (nil, nil)，不作为错误
// 参数:
//   - ctx: 上下文
//   - objectName: 对象路径
//
// 返回:
//   - []byte: 对象数据，不存在时为 nil
//   - error: 存储层错误
func (s *MinIOStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// GetObject 是惰性的，缺失要到读取时才暴露
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete 删除对象
// 删除不存在的对象不报错
func (s *MinIOStore) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// DeleteByPrefix 按前缀批量删除对象
// 返回删除的对象数量
func (s *MinIOStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := s.ListByPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range objects {
		if err := s.Delete(ctx, name); err != nil {
			// 单个对象删除失败不中断，继续清理其余对象
			log.Printf("[WARN] delete %s failed: %v", name, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ListByPrefix 列出指定前缀下的所有对象名
func (s *MinIOStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, info.Err
		}
		names = append(names, info.Key)
	}
	return names, nil
}

// isNotFound 判断错误是否为"对象不存在"
func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
