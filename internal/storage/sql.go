package storage

import (
	"fmt"

	"github.com/utrading/utrading-wallet-sync/internal/dao"
)

// SQLStore 基于 gorm 的存储（sqlite / mysql）
type SQLStore struct {
	items *dao.StorageItemDAO
}

func NewSQLStore(items *dao.StorageItemDAO) *SQLStore {
	return &SQLStore{items: items}
}

func (s *SQLStore) GetItem(key string) (string, bool, error) {
	value, found, err := s.items.Get(key)
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, found, nil
}

func (s *SQLStore) SetItem(key, value string) error {
	if err := s.items.Upsert(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) RemoveItem(key string) error {
	if err := s.items.Delete(key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
