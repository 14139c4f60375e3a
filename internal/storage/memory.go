package storage

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore 进程内存储，不做过期，过期由上层 cache 处理
type MemoryStore struct {
	items *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, 0),
	}
}

func (s *MemoryStore) GetItem(key string) (string, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *MemoryStore) SetItem(key, value string) error {
	s.items.Set(key, value, gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) RemoveItem(key string) error {
	s.items.Delete(key)
	return nil
}

// Len 当前键数量
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
