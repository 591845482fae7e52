package renderer

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// DisplayFontPaths は優先的に使う表示用フォント（Impact 系）の探索パスです。
// 先頭から順に試し、どれも読めない場合は組み込みの太字フォントを使います。
var DisplayFontPaths = []string{
	"impact.ttf",
	"/usr/share/fonts/truetype/msttcorefonts/Impact.ttf",
	"/usr/share/fonts/truetype/msttcorefonts/impact.ttf",
	"/Library/Fonts/Impact.ttf",
	`C:\Windows\Fonts\impact.ttf`,
}

// fontDPI は px 指定をそのままポイントとして扱うための固定値です。
const fontDPI = 72

// resolveFace は指定サイズのフォントフェイスを解決します。
// 「フォントを試して駄目なら既定へ」は例外処理ではなく能力チェックとして扱い、
// 必ず使えるフェイスを返します（呼び出しは失敗しません）。
//
// 最終フォールバックの固定サイズビットマップフォントは指定サイズを保持しない
// 品質劣化パスです。このサイズ不一致は元実装の挙動をそのまま踏襲しています。
func resolveFace(size float64) (face font.Face, degraded bool) {
	for _, p := range DisplayFontPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		f, err := newFace(data, size)
		if err != nil {
			slog.Warn("表示用フォントの読み込みに失敗しました", "path", p, "error", err)
			continue
		}
		return f, false
	}

	if f, err := newFace(gobold.TTF, size); err == nil {
		return f, false
	}

	slog.Warn("表示用フォントを解決できませんでした。固定サイズの簡易フォントで描画します（品質劣化）")
	return basicfont.Face7x13, true
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("フォントの解析に失敗しました: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("フォントフェイスの生成に失敗しました: %w", err)
	}
	return face, nil
}
