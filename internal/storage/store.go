package storage

// Store 字符串键值的持久化存储，语义与浏览器 localStorage 一致
type Store interface {
	GetItem(key string) (value string, found bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}
