package caption

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_PostJSONAndFetchBytes(t *testing.T) {
	ctx := context.Background()

	t.Run("2xx応答はボディをそのまま返すのだ", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("メソッドが POST ではないのだ: %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type が想定外なのだ: %s", ct)
			}
			body, _ := io.ReadAll(r.Body)
			var got map[string]string
			if err := json.Unmarshal(body, &got); err != nil {
				t.Errorf("リクエストボディが JSON ではないのだ: %v", err)
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := NewClient(5 * time.Second)
		body, err := c.PostJSONAndFetchBytes(ctx, srv.URL, map[string]string{"hello": "world"})
		if err != nil {
			t.Fatalf("POST が失敗したのだ: %v", err)
		}
		if string(body) != `{"ok":true}` {
			t.Errorf("ボディが想定外なのだ: %s", body)
		}
	})

	t.Run("非2xx応答はエラーになり境界を越えて伝播しないのだ", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewClient(5 * time.Second)
		body, err := c.PostJSONAndFetchBytes(ctx, srv.URL, map[string]string{})
		if err == nil {
			t.Fatal("非2xxでエラーが返らないのだ")
		}
		if body != nil {
			t.Error("エラー時にボディを返してはいけないのだ")
		}
	})

	t.Run("コンテキストのキャンセルを尊重するのだ", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
		}))
		defer srv.Close()

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		c := NewClient(5 * time.Second)
		if _, err := c.PostJSONAndFetchBytes(cctx, srv.URL, map[string]string{}); err == nil {
			t.Error("タイムアウトでエラーが返らないのだ")
		}
	})
}
