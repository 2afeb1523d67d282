package background

import (
	"os"
	"sync"
	"testing"

	"palenque-realtime/model"

	"github.com/rs/zerolog"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

// TestAppStateFeedPush 測試狀態餵入與通知
func TestAppStateFeedPush(t *testing.T) {
	feed := NewAppStateFeed(newTestLogger())

	var mu sync.Mutex
	var got []model.AppState
	feed.OnChange(func(state model.AppState) {
		mu.Lock()
		got = append(got, state)
		mu.Unlock()
	})

	feed.Push(model.AppStateBackground)
	feed.Push(model.AppStateActive)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != model.AppStateBackground || got[1] != model.AppStateActive {
		t.Fatalf("通知序列錯誤: %v", got)
	}
	if feed.Current() != model.AppStateActive {
		t.Fatalf("當前狀態錯誤: %s", feed.Current())
	}
}

// TestAppStateFeedDedupe 測試相同狀態不重複通知
func TestAppStateFeedDedupe(t *testing.T) {
	feed := NewAppStateFeed(newTestLogger())

	count := 0
	feed.OnChange(func(model.AppState) { count++ })

	feed.Push(model.AppStateActive) // 初始即為 active
	if count != 0 {
		t.Fatalf("相同狀態不應通知，實際 %d 次", count)
	}

	feed.Push(model.AppStateBackground)
	feed.Push(model.AppStateBackground)
	if count != 1 {
		t.Fatalf("重複狀態應只通知一次，實際 %d 次", count)
	}
}

// TestAppStateFeedRemoveListener 測試解除監聽
func TestAppStateFeedRemoveListener(t *testing.T) {
	feed := NewAppStateFeed(newTestLogger())

	count := 0
	remove := feed.OnChange(func(model.AppState) { count++ })
	remove()

	feed.Push(model.AppStateBackground)
	if count != 0 {
		t.Fatalf("解除後不應收到通知，實際 %d 次", count)
	}
}
