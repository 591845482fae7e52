package caption

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxImageBytes は取得する画像の上限サイズです。
const maxImageBytes = 10 << 20

// Fetcher は URL から画像データを取得します。
// ミーム化・キャプション提案の入力としてリモート画像を使う場合に利用します。
type Fetcher struct {
	hc *http.Client
}

// NewFetcher は指定タイムアウトの Fetcher を生成します。
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{hc: &http.Client{Timeout: timeout}}
}

// FetchImage は URL の内容を取得し、画像であることを確認して返します。
// 取得前に SSRF 対策のバリデーションを行います。
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if safe, err := IsSafeURL(rawURL); !safe || err != nil {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("予期しないステータスコード: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み込みに失敗しました: %w", err)
	}

	if mimeType := http.DetectContentType(data); !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("画像ではないコンテンツが返されました (MIME: %s)", mimeType)
	}
	return data, nil
}

// IsSafeURL は、SSRF (Server-Side Request Forgery) 対策として URL を検証します。
// 許可されたスキーム (http, https) かつ、プライベートIPやループバックアドレスを
// ターゲットにしていないことを、名前解決されたすべての IP に対して確認します。
func IsSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("ホスト '%s' の名前解決に失敗しました: %w", host, err)
		}
		ips = resolved
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}

	return true, nil
}
