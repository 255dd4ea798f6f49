// Package storage 提供对象存储适配层
// 项目文件和错题图片作为不透明的二进制对象存取，元数据由数据库负责
package storage

import "context"

// ObjectStore 对象存储接口
// 读取不存在的对象返回 (nil, nil)，由调用方决定如何处理缺失
type ObjectStore interface {
	// Put 上传对象
	Put(ctx context.Context, objectName string, data []byte, contentType string) error

	// Get 下载对象
	// 对象不存在时返回 (nil, nil)，不作为错误
	Get(ctx context.Context, objectName string) ([]byte, error)

	// Delete 删除对象
	// 删除不存在的对象不报错
	Delete(ctx context.Context, objectName string) error

	// DeleteByPrefix 按前缀批量删除对象
	// 返回删除的对象数量
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// ListByPrefix 列出指定前缀下的所有对象名
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}
