package caption

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

// testPNG は最小の有効な PNG バイト列を作るのだ。
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.Set(i%4, i/4, color.NRGBA{R: uint8(i * 16), A: 255})
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("テスト画像の生成に失敗したのだ: %v", err)
	}
	return buf.Bytes()
}

const validResponse = `{"candidates":[{"content":{"parts":[{"text":"  when the tests pass  "}]},"finishReason":"STOP"}]}`

func TestGeminiSuggester_Suggest(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: 最初の候補のテキストをトリムして返すのだ", func(t *testing.T) {
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return []byte(validResponse), nil
			},
		}
		s, err := NewGeminiSuggester(poster, "", nil, 0)
		if err != nil {
			t.Fatalf("初期化に失敗したのだ: %v", err)
		}

		text, err := s.Suggest(ctx, testPNG(t), "test-key")
		if err != nil {
			t.Fatalf("Suggest がエラーを返したのだ: %v", err)
		}
		if text != "when the tests pass" {
			t.Errorf("トリム済みテキストが期待と異なるのだ: %q", text)
		}

		// リクエストの形を確認する
		if !strings.Contains(poster.lastURL, "models/"+DefaultModel+":generateContent") {
			t.Errorf("URLにモデル名が含まれていないのだ: %s", poster.lastURL)
		}
		if !strings.Contains(poster.lastURL, "key=test-key") {
			t.Errorf("URLにAPIキーが含まれていないのだ: %s", poster.lastURL)
		}
		req, ok := poster.lastData.(generateRequest)
		if !ok {
			t.Fatalf("リクエストボディの型が想定外なのだ: %T", poster.lastData)
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 {
			t.Fatalf("パーツ数が想定外なのだ: %d", len(parts))
		}
		if parts[0].Text == "" || parts[0].InlineData != nil {
			t.Error("最初のパーツは固定プロンプトのテキストであるべきなのだ")
		}
		if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" {
			t.Error("2番目のパーツは JPEG の InlineData であるべきなのだ")
		}
		if len(parts[1].InlineData.Data) == 0 {
			t.Error("InlineData に画像バイト列が入っていないのだ")
		}
	})

	t.Run("同一画像の2回目はキャッシュから返し通信しないのだ", func(t *testing.T) {
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return []byte(validResponse), nil
			},
		}
		cache := &mockCache{data: make(map[string]any)}
		s, err := NewGeminiSuggester(poster, DefaultModel, cache, time.Hour)
		if err != nil {
			t.Fatalf("初期化に失敗したのだ: %v", err)
		}

		img := testPNG(t)
		first, err := s.Suggest(ctx, img, "k")
		if err != nil {
			t.Fatalf("1回目の Suggest が失敗したのだ: %v", err)
		}
		second, err := s.Suggest(ctx, img, "k")
		if err != nil {
			t.Fatalf("2回目の Suggest が失敗したのだ: %v", err)
		}

		if first != second {
			t.Errorf("キャッシュされた結果が一致しないのだ: %q != %q", first, second)
		}
		if poster.calls != 1 {
			t.Errorf("通信回数が想定外なのだ: want 1, got %d", poster.calls)
		}
	})

	t.Run("異常系: HTTPエラーはラップして返すのだ", func(t *testing.T) {
		wantErr := errors.New("status 503")
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return nil, wantErr
			},
		}
		s, _ := NewGeminiSuggester(poster, "", nil, 0)

		text, err := s.Suggest(ctx, testPNG(t), "k")
		if !errors.Is(err, wantErr) {
			t.Errorf("元のエラーが errors.Is で辿れないのだ: %v", err)
		}
		if text != "" {
			t.Errorf("エラー時のキャプションは空であるべきなのだ: %q", text)
		}
	})

	t.Run("異常系: 壊れたJSONはエラーになるのだ", func(t *testing.T) {
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return []byte(`{"candidates": [broken`), nil
			},
		}
		s, _ := NewGeminiSuggester(poster, "", nil, 0)

		if _, err := s.Suggest(ctx, testPNG(t), "k"); err == nil {
			t.Error("壊れたJSONでエラーが返らないのだ")
		}
	})

	t.Run("異常系: 候補なしは ErrNoCaption なのだ", func(t *testing.T) {
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return []byte(`{"candidates":[]}`), nil
			},
		}
		s, _ := NewGeminiSuggester(poster, "", nil, 0)

		_, err := s.Suggest(ctx, testPNG(t), "k")
		if !errors.Is(err, ErrNoCaption) {
			t.Errorf("ErrNoCaption が返るべきなのだ: %v", err)
		}
	})

	t.Run("異常系: 安全フィルターでブロックされた場合もエラーなのだ", func(t *testing.T) {
		poster := &mockPoster{
			postFunc: func(ctx context.Context, url string, data any) ([]byte, error) {
				return []byte(`{"candidates":[{"finishReason":"SAFETY"}]}`), nil
			},
		}
		s, _ := NewGeminiSuggester(poster, "", nil, 0)

		_, err := s.Suggest(ctx, testPNG(t), "k")
		if !errors.Is(err, ErrNoCaption) {
			t.Errorf("ErrNoCaption が返るべきなのだ: %v", err)
		}
	})

	t.Run("入力バリデーション: 空画像と空キーは通信前に弾くのだ", func(t *testing.T) {
		poster := &mockPoster{}
		s, _ := NewGeminiSuggester(poster, "", nil, 0)

		if _, err := s.Suggest(ctx, nil, "k"); err == nil {
			t.Error("空画像がエラーにならないのだ")
		}
		if _, err := s.Suggest(ctx, testPNG(t), ""); err == nil {
			t.Error("空のAPIキーがエラーにならないのだ")
		}
		if poster.calls != 0 {
			t.Errorf("バリデーション失敗時に通信してはいけないのだ: %d", poster.calls)
		}
	})
}

func TestNewGeminiSuggester(t *testing.T) {
	t.Run("httpClient は必須なのだ", func(t *testing.T) {
		if _, err := NewGeminiSuggester(nil, "", nil, 0); err == nil {
			t.Error("nil の httpClient でエラーが返らないのだ")
		}
	})

	t.Run("model 省略時は既定値を使うのだ", func(t *testing.T) {
		s, err := NewGeminiSuggester(&mockPoster{}, "", nil, 0)
		if err != nil {
			t.Fatalf("初期化に失敗したのだ: %v", err)
		}
		if s.model != DefaultModel {
			t.Errorf("既定モデルが設定されていないのだ: %s", s.model)
		}
	})
}

func TestParseCaption_MultiParts(t *testing.T) {
	// 先頭パーツが空白のみの場合は次のパーツのテキストを採用する
	body := []byte(`{"candidates":[{"content":{"parts":[{"text":"  "},{"text":"actual caption"}]}}]}`)
	text, err := parseCaption(body)
	if err != nil {
		t.Fatalf("parseCaption が失敗したのだ: %v", err)
	}
	if text != "actual caption" {
		t.Errorf("2番目のパーツが採用されていないのだ: %q", text)
	}
}
