package renderer

import (
	"errors"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/shouni/go-meme-kit/pkg/domain"
)

// ErrInvalidImage は入力ビットマップが描画に使えない場合に返されます。
// フォント解決の失敗はフォールバックで回復するため、このエラーにはなりません。
var ErrInvalidImage = errors.New("renderer: 入力画像が不正です")

const (
	// edgeMargin は上下キャプションと画像端との固定マージン(px)です。
	edgeMargin = 10
	// outlineOffset は黒縁取りのオフセット(px)です。
	outlineOffset = 2
)

// Render は src のコピーに上下キャプションを合成した新しいビットマップを返します。
//
//   - 出力の寸法は常に入力と等しい
//   - テキストは大文字化し、白文字・黒縁取りで水平中央に描画する
//   - フォントサイズは画像幅の 1/10（整数除算）
//   - 両スロットが空（空白のみ含む）の場合は入力と画素単位で等しいコピーを返す
//   - 画像幅を超えるテキストは折り返さず中央寄せのまま描画する（はみ出しは許容）
//
// src は読み取りのみで変更されません。返り値の所有権は呼び出し側に移ります。
func Render(src image.Image, c domain.Caption) (image.Image, error) {
	if src == nil {
		return nil, ErrInvalidImage
	}
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidImage
	}

	if c.IsEmpty() {
		return imaging.Clone(src), nil
	}

	// 元実装と同じく、フォントサイズは画像幅の 1/10（整数除算）。
	size := width / 10
	if size < 1 {
		size = 1
	}
	face, _ := resolveFace(float64(size))

	dc := gg.NewContextForImage(src)
	dc.SetFontFace(face)

	if top := strings.TrimSpace(c.Top); top != "" {
		drawSlot(dc, face, strings.ToUpper(top), width, topBaseline(face))
	}
	if bottom := strings.TrimSpace(c.Bottom); bottom != "" {
		drawSlot(dc, face, strings.ToUpper(bottom), width, bottomBaseline(face, height))
	}

	return dc.Image(), nil
}

// drawSlot は1スロット分のテキストを水平中央に描画します。
// ストローク描画プリミティブを使わず、黒で (±2, ±2) の4回 + 白で本体1回の
// 重ね描きにより縁取り付きの文字を合成します。
func drawSlot(dc *gg.Context, face font.Face, text string, width int, baseline float64) {
	textWidth := fixedToFloat(font.MeasureString(face, text))
	x := (float64(width) - textWidth) / 2

	dc.SetColor(color.Black)
	offsets := [4][2]float64{
		{-outlineOffset, -outlineOffset},
		{+outlineOffset, -outlineOffset},
		{-outlineOffset, +outlineOffset},
		{+outlineOffset, +outlineOffset},
	}
	for _, d := range offsets {
		dc.DrawString(text, x+d[0], baseline+d[1])
	}

	dc.SetColor(color.White)
	dc.DrawString(text, x, baseline)
}

// topBaseline は em ボックスの上端が画像上端から edgeMargin に来るベースライン位置です。
func topBaseline(face font.Face) float64 {
	return edgeMargin + fixedToFloat(face.Metrics().Ascent)
}

// bottomBaseline は em ボックスの下端が画像下端から edgeMargin 上に来るベースライン位置です。
func bottomBaseline(face font.Face, height int) float64 {
	return float64(height) - edgeMargin - fixedToFloat(face.Metrics().Descent)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
