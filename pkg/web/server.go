package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shouni/go-meme-kit/pkg/caption"
	"github.com/shouni/go-meme-kit/pkg/domain"
	"github.com/shouni/go-meme-kit/pkg/imgutil"
	"github.com/shouni/go-meme-kit/pkg/renderer"
)

// maxUploadBytes はアップロード画像の上限サイズです。
const maxUploadBytes = 10 << 20

// ImageFetcher は URL から画像データを取得する最小インターフェースです。
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

// Server はミーム生成の Web フォームと API を提供します。
// フォームの状態は毎回のリクエストで明示的に渡され、サーバー側に
// セッション的な共有状態は持ちません。
type Server struct {
	echo      *echo.Echo
	suggester caption.Suggester
	fetcher   ImageFetcher
}

// NewServer は依存関係を注入して Server を初期化します。
// fetcher は nil を許容します（image_url 指定が使えなくなるだけ）。
func NewServer(suggester caption.Suggester, fetcher ImageFetcher) (*Server, error) {
	if suggester == nil {
		return nil, fmt.Errorf("suggester is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		suggester: suggester,
		fetcher:   fetcher,
	}

	e.GET("/", s.handleIndex)
	e.POST("/meme", s.handleMeme)
	e.POST("/caption", s.handleCaption)

	return s, nil
}

// Start はアドレスで待ち受けを開始します。
func (s *Server) Start(addr string) error {
	slog.Info("Webサーバーを起動します", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown は処理中のリクエストを待ってサーバーを停止します。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}

// handleMeme は画像と上下テキストを受け取り、合成結果を PNG で返します。
func (s *Server) handleMeme(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := s.readImage(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	src, err := imgutil.Decode(data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not decode image (jpg/jpeg/png)")
	}

	texts := domain.Caption{
		Top:    c.FormValue("top_text"),
		Bottom: c.FormValue("bottom_text"),
	}

	out, err := renderer.Render(src, texts)
	if err != nil {
		slog.ErrorContext(ctx, "ミームの描画に失敗しました", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render meme")
	}

	pngData, err := imgutil.EncodePNG(out)
	if err != nil {
		slog.ErrorContext(ctx, "PNGエンコードに失敗しました", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode meme")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="meme.png"`)
	return c.Blob(http.StatusOK, "image/png", pngData)
}

type captionResponse struct {
	Caption string `json:"caption"`
	Error   string `json:"error,omitempty"`
}

// handleCaption は AI キャプション提案を返します。
// 提案の失敗はこの境界でユーザー向けメッセージ + 空キャプションに変換され、
// 障害としては伝播しません。
func (s *Server) handleCaption(c echo.Context) error {
	ctx := c.Request().Context()

	apiKey := c.FormValue("api_key")
	if apiKey == "" {
		return c.JSON(http.StatusOK, captionResponse{
			Error: "Enter an API key to enable AI caption suggestions.",
		})
	}

	data, err := s.readImage(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	text, err := s.suggester.Suggest(ctx, data, apiKey)
	if err != nil {
		slog.ErrorContext(ctx, "キャプション提案に失敗しました", "error", err)
		return c.JSON(http.StatusOK, captionResponse{
			Caption: "",
			Error:   "AI could not generate a caption. Please try again.",
		})
	}

	return c.JSON(http.StatusOK, captionResponse{Caption: text})
}

// readImage はアップロードファイル、なければ image_url から画像バイト列を読みます。
func (s *Server) readImage(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("image"); err == nil {
		if file.Size > maxUploadBytes {
			return nil, fmt.Errorf("image too large (max %d MB)", maxUploadBytes>>20)
		}
		f, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file")
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file")
		}
		return data, nil
	}

	if rawURL := c.FormValue("image_url"); rawURL != "" {
		if s.fetcher == nil {
			return nil, fmt.Errorf("image_url is not supported")
		}
		data, err := s.fetcher.FetchImage(c.Request().Context(), rawURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image from url")
		}
		return data, nil
	}

	return nil, fmt.Errorf("missing image file (form field 'image')")
}
