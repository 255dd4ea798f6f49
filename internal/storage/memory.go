// Package storage 提供对象存储适配层
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore 内存对象存储
// 实现 ObjectStore 接口，用于单元测试和本地开发
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryStore 创建 MemoryStore 实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Put 上传对象
func (s *MemoryStore) Put(_ context.Context, objectName string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 拷贝一份，避免调用方后续修改切片影响存储内容
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[objectName] = buf
	s.types[objectName] = contentType
	return nil
}

// Get 下载对象，不存在时返回 (nil, nil)
func (s *MemoryStore) Get(_ context.Context, objectName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[objectName]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete 删除对象，不存在时不报错
func (s *MemoryStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, objectName)
	delete(s.types, objectName)
	return nil
}

// DeleteByPrefix 按前缀批量删除对象
func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			delete(s.objects, name)
			delete(s.types, name)
			deleted++
		}
	}
	return deleted, nil
}

// ListByPrefix 列出指定前缀下的所有对象名
func (s *MemoryStore) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Len 返回存储的对象数量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
