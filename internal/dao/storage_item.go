package dao

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-wallet-sync/internal/models"
)

type StorageItemDAO struct {
	db *gorm.DB
}

func NewStorageItemDAO(db *gorm.DB) *StorageItemDAO {
	return &StorageItemDAO{db: db}
}

// Get 查询单个键，不存在时返回 found=false
func (d *StorageItemDAO) Get(key string) (string, bool, error) {
	var item models.StorageItem
	err := d.db.Where("item_key = ?", key).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

// Upsert 写入或覆盖键值
func (d *StorageItemDAO) Upsert(key, value string) error {
	item := &models.StorageItem{ItemKey: key, Value: value}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(item).Error
}

// Delete 删除键，不存在时不报错
func (d *StorageItemDAO) Delete(key string) error {
	return d.db.Where("item_key = ?", key).Delete(&models.StorageItem{}).Error
}
