package qrcode

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"
)

// Preloader 预加载二维码图片，图片能解码才算成功
type Preloader interface {
	Preload(ctx context.Context, url string) error
}

// HTTPPreloader 下载图片并解析图片头
type HTTPPreloader struct {
	client *http.Client
}

func NewHTTPPreloader(timeout time.Duration) *HTTPPreloader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPreloader{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPreloader) Preload(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build preload request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("load image: unexpected status %d", resp.StatusCode)
	}

	if _, _, err = image.DecodeConfig(resp.Body); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}
