package models

import "time"

// StorageItem 持久化键值表，对应浏览器 localStorage 中的一项
type StorageItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemKey   string    `gorm:"type:varchar(191);not null;uniqueIndex:uidx_item_key;comment:缓存键" json:"item_key"`
	Value     string    `gorm:"type:mediumtext;not null;comment:序列化后的值" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StorageItem) TableName() string {
	return "wallet_storage_items"
}
