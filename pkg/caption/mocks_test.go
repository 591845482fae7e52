package caption

import (
	"context"
	"time"
)

// mockPoster は HTTPPoster インターフェースのテスト用モックなのだ。
type mockPoster struct {
	postFunc func(ctx context.Context, url string, data any) ([]byte, error)
	calls    int
	lastURL  string
	lastData any
}

func (m *mockPoster) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	m.calls++
	m.lastURL = url
	m.lastData = data
	if m.postFunc != nil {
		return m.postFunc(ctx, url, data)
	}
	return nil, nil
}

// mockCache は ImageCacher インターフェースを実装するのだ。
type mockCache struct {
	data map[string]any
}

func (m *mockCache) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(key string, value any, d time.Duration) {
	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[key] = value
}
