package qrcode

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHTTPPreloader(t *testing.T) {
	body := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "180x180", r.URL.Query().Get("size"))
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		case "/text":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewHTTPPreloader(time.Second)
	ctx := context.Background()

	assert.NoError(t, p.Preload(ctx, server.URL+"/ok?size=180x180&data=abc"))
	assert.Error(t, p.Preload(ctx, server.URL+"/text"))
	assert.Error(t, p.Preload(ctx, server.URL+"/missing"))
}

func TestManagerWithHTTPPreloader(t *testing.T) {
	body := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	m, _ := newTestManager(NewHTTPPreloader(time.Second))
	m.endpoint = server.URL + "/"

	url := m.GenerateQRCode(context.Background(), SlotETH, testAddrs.ETH)
	assert.Equal(t, server.URL+"/?size=180x180&data="+testAddrs.ETH, url)
	assert.Equal(t, 1, m.Len())
}
