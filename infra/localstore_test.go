package infra

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := OpenLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("開啟本地儲存失敗: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestLocalStoreFlags 測試布林旗標讀寫
func TestLocalStoreFlags(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetFlag("keyboard_opened_once")
	if err != nil {
		t.Fatalf("讀取旗標失敗: %v", err)
	}
	if got {
		t.Fatal("未寫入的旗標應為 false")
	}

	if err := store.SetFlag("keyboard_opened_once", true); err != nil {
		t.Fatalf("寫入旗標失敗: %v", err)
	}
	got, err = store.GetFlag("keyboard_opened_once")
	if err != nil {
		t.Fatalf("讀取旗標失敗: %v", err)
	}
	if !got {
		t.Fatal("寫入後旗標應為 true")
	}

	if err := store.SetFlag("keyboard_opened_once", false); err != nil {
		t.Fatalf("覆寫旗標失敗: %v", err)
	}
	got, _ = store.GetFlag("keyboard_opened_once")
	if got {
		t.Fatal("覆寫後旗標應為 false")
	}
}

// TestLocalStoreStrings 測試字串讀寫
func TestLocalStoreStrings(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetString("last_role")
	if err != nil {
		t.Fatalf("讀取字串失敗: %v", err)
	}
	if got != "" {
		t.Fatalf("未寫入的字串應為空，實際 %q", got)
	}

	if err := store.SetString("last_role", "delivery_partner"); err != nil {
		t.Fatalf("寫入字串失敗: %v", err)
	}
	got, _ = store.GetString("last_role")
	if got != "delivery_partner" {
		t.Fatalf("字串讀寫不一致: %q", got)
	}
}

// TestLocalStorePersistence 測試重新開啟後資料仍在
func TestLocalStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	store, err := OpenLocalStore(path)
	if err != nil {
		t.Fatalf("開啟本地儲存失敗: %v", err)
	}
	if err := store.SetFlag("keyboard_opened_once", true); err != nil {
		t.Fatalf("寫入旗標失敗: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("關閉失敗: %v", err)
	}

	store, err = OpenLocalStore(path)
	if err != nil {
		t.Fatalf("重新開啟失敗: %v", err)
	}
	defer store.Close()

	got, err := store.GetFlag("keyboard_opened_once")
	if err != nil {
		t.Fatalf("讀取旗標失敗: %v", err)
	}
	if !got {
		t.Fatal("重新開啟後旗標應保留")
	}
}
