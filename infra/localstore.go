package infra

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

// flagsBucket 存放客戶端旗標的 bucket 名稱
var flagsBucket = []byte("flags")

// LocalStore 以 bbolt 實作的本地 key-value 儲存。
// 客戶端僅持久化少量旗標（例如 keyboard_opened_once、上次進入的角色），
// 不做任何業務資料的本地快取 — 伺服器永遠是資料來源。
type LocalStore struct {
	db *bolt.DB
}

// OpenLocalStore 開啟（必要時建立）本地儲存檔案
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(flagsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LocalStore{db: db}, nil
}

// SetFlag 寫入布林旗標
func (s *LocalStore) SetFlag(key string, value bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := []byte{0}
		if value {
			v = []byte{1}
		}
		return tx.Bucket(flagsBucket).Put([]byte(key), v)
	})
}

// GetFlag 讀取布林旗標；不存在時回傳 false
func (s *LocalStore) GetFlag(key string) (bool, error) {
	var value bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(flagsBucket).Get([]byte(key))
		value = len(v) == 1 && v[0] == 1
		return nil
	})
	return value, err
}

// SetString 寫入字串值
func (s *LocalStore) SetString(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(flagsBucket).Put([]byte(key), []byte(value))
	})
}

// GetString 讀取字串值；不存在時回傳空字串
func (s *LocalStore) GetString(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		value = string(tx.Bucket(flagsBucket).Get([]byte(key)))
		return nil
	})
	return value, err
}

// Close 關閉本地儲存
func (s *LocalStore) Close() error {
	return s.db.Close()
}
