package caption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-meme-kit/pkg/imgutil"
)

const (
	// DefaultBaseURL は Gemini API のベース URL です。
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel は提案に使う既定のモデルです。
	DefaultModel = "gemini-2.0-flash"
	// RequestTimeout は提案1回あたりの通信上限時間です。
	RequestTimeout = 60 * time.Second

	// defaultPrompt は元サービスと同一の固定プロンプトです。
	defaultPrompt = "Analyze this image and generate a short, funny meme caption for it. Provide only the text for the caption, without any extra formatting or labels."

	jpegQuality    = 90
	cacheKeyPrefix = "caption:"
)

// ErrNoCaption はレスポンスからキャプション文字列を取り出せなかった場合に返されます。
var ErrNoCaption = errors.New("caption: 応答にキャプションが含まれていません")

// Suggester は画像1枚からキャプション文字列を1つ提案します。
// 失敗はエラーとして返し、ユーザー向けメッセージへの変換は呼び出し側の境界で行います。
type Suggester interface {
	Suggest(ctx context.Context, imageData []byte, apiKey string) (string, error)
}

// HTTPPoster は JSON ボディを POST してレスポンスボディを取得する最小インターフェースです。
type HTTPPoster interface {
	PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error)
}

// ImageCacher は提案結果のキャッシュ操作を抽象化するインターフェースです。
type ImageCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

// GeminiSuggester は Gemini generateContent REST API でキャプションを提案します。
// 同一画像への再リクエストはダイジェストをキーにキャッシュから返します。
type GeminiSuggester struct {
	httpClient HTTPPoster
	cache      ImageCacher
	cacheTTL   time.Duration
	baseURL    string
	model      string
	prompt     string
}

// NewGeminiSuggester は依存関係を注入して GeminiSuggester を初期化します。
// cache は nil を許容します（キャッシュなし動作）。model が空の場合は既定値を使います。
func NewGeminiSuggester(httpClient HTTPPoster, model string, cache ImageCacher, cacheTTL time.Duration) (*GeminiSuggester, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiSuggester{
		httpClient: httpClient,
		cache:      cache,
		cacheTTL:   cacheTTL,
		baseURL:    DefaultBaseURL,
		model:      model,
		prompt:     defaultPrompt,
	}, nil
}

// generateRequest / generateResponse は generateContent REST の最小ワイヤ形式です。
// InlineData.Data は []byte のまま保持し、base64 表現は encoding/json に任せます。
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// Suggest は画像を JPEG に再圧縮して Gemini に送り、提案テキストを返します。
// 通信には RequestTimeout の上限が常に掛かります。
func (s *GeminiSuggester) Suggest(ctx context.Context, imageData []byte, apiKey string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("caption: 画像データが空です")
	}
	if apiKey == "" {
		return "", fmt.Errorf("caption: APIキーが指定されていません")
	}

	// 送信ペイロードの削減と MIME タイプの固定のため、常に JPEG へ再圧縮する。
	jpegData, err := imgutil.CompressToJPEG(imageData, jpegQuality)
	if err != nil {
		return "", fmt.Errorf("caption: JPEGへの変換に失敗しました: %w", err)
	}

	key := cacheKeyPrefix + digest(jpegData)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if text, ok := v.(string); ok {
				slog.DebugContext(ctx, "キャプションをキャッシュから返します", "key", key)
				return text, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "key", key, "type", fmt.Sprintf("%T", v))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: s.prompt},
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: jpegData}},
			},
		}},
	}

	// URL には API キーが含まれるため、ログには出さないこと。
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, apiKey)

	body, err := s.httpClient.PostJSONAndFetchBytes(ctx, url, req)
	if err != nil {
		return "", fmt.Errorf("caption: 提案リクエストに失敗しました: %w", err)
	}

	text, err := parseCaption(body)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cache.Set(key, text, s.cacheTTL)
	}
	return text, nil
}

// parseCaption はレスポンス JSON から最初の候補のテキストを取り出します。
func parseCaption(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("caption: 応答の解析に失敗しました: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCaption
	}

	// 現在の仕様では最初の候補のみを利用する。
	first := resp.Candidates[0]
	for _, p := range first.Content.Parts {
		if text := strings.TrimSpace(p.Text); text != "" {
			return text, nil
		}
	}

	// 安全フィルター等によるブロックの確認
	if first.FinishReason != "" && first.FinishReason != "STOP" {
		return "", fmt.Errorf("caption: 生成が異常終了しました (finishReason: %s): %w", first.FinishReason, ErrNoCaption)
	}
	return "", ErrNoCaption
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
