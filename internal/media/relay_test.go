package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/cms/wordpress"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type upload struct {
	filename string
	mimeType string
	size     int
	at       time.Time
}

type fakeUploader struct {
	nextID  int64
	failOn  map[int]bool
	uploads []upload
}

func (f *fakeUploader) UploadMedia(_ context.Context, _ domain.Site, filename, mimeType string, data []byte) (wordpress.Media, error) {
	f.uploads = append(f.uploads, upload{filename: filename, mimeType: mimeType, size: len(data), at: time.Now()})
	if f.failOn[len(f.uploads)] {
		return wordpress.Media{}, &wordpress.HTTPError{Status: 500}
	}
	f.nextID++
	id := 10 + f.nextID
	return wordpress.Media{ID: id, SourceURL: fmt.Sprintf("https://cms.test/uploads/%d.png", id)}, nil
}

var site = domain.Site{ID: "s1", BaseURL: "https://cms.test"}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func dataImg(alt string) string {
	return `<img alt="` + alt + `" src="data:image/png;base64,` + pixelPNG + `">`
}

func TestRelayImages_FirstImageBecomesFeatured(t *testing.T) {
	up := &fakeUploader{}
	r := NewRelay(up, WithUploadDelay(0))
	body := "<h2>Kediler</h2>" + dataImg("one") + "<p>metin</p>" + dataImg("two") + "<p>son</p>" + dataImg("three")

	out, err := r.RelayImages(context.Background(), body, site, "post-7")
	require.NoError(t, err)

	require.NotNil(t, out.FeaturedMediaID)
	assert.Equal(t, int64(11), *out.FeaturedMediaID)
	assert.Equal(t, 2, strings.Count(out.HTML, "<img"))
	assert.NotContains(t, out.HTML, `alt="one"`)
	assert.Contains(t, out.HTML, `<img alt="two" src="https://cms.test/uploads/12.png"/>`)
	assert.Contains(t, out.HTML, `<img alt="three" src="https://cms.test/uploads/13.png"/>`)
	assert.NotContains(t, out.HTML, "data:")
	assert.Equal(t, 3, out.Uploaded)
	assert.Zero(t, out.Failed)

	require.Len(t, up.uploads, 3)
	assert.Equal(t, "post-7-1.png", up.uploads[0].filename)
	assert.Equal(t, "post-7-3.png", up.uploads[2].filename)
	assert.Equal(t, "image/png", up.uploads[0].mimeType)
}

func TestRelayImages_UploadFailureIsSkipped(t *testing.T) {
	up := &fakeUploader{failOn: map[int]bool{1: true}}
	r := NewRelay(up, WithUploadDelay(0))
	body := dataImg("one") + dataImg("two") + dataImg("three")

	out, err := r.RelayImages(context.Background(), body, site, "c")
	require.NoError(t, err)

	require.NotNil(t, out.FeaturedMediaID)
	assert.Equal(t, int64(11), *out.FeaturedMediaID)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 2, out.Uploaded)
	// the failed image keeps its original source
	assert.Contains(t, out.HTML, `alt="one" src="data:image/png;base64,`)
	assert.NotContains(t, out.HTML, `alt="two"`)
	assert.Contains(t, out.HTML, `src="https://cms.test/uploads/12.png"`)
}

func TestRelayImages_NoImagesReturnsInput(t *testing.T) {
	r := NewRelay(&fakeUploader{})
	body := "<p>only <b>text</b></p>"
	out, err := r.RelayImages(context.Background(), body, site, "c")
	require.NoError(t, err)
	assert.Equal(t, body, out.HTML)
	assert.Nil(t, out.FeaturedMediaID)
}

func TestRelayImages_RemovesEmptyWrapperAndSrcset(t *testing.T) {
	up := &fakeUploader{}
	r := NewRelay(up, WithUploadDelay(0))
	body := `<figure>` + dataImg("hero") + `</figure><p><img src="data:image/png;base64,` + pixelPNG + `" srcset="a.png 2x"></p>`

	out, err := r.RelayImages(context.Background(), body, site, "c")
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<figure>")
	assert.NotContains(t, out.HTML, "srcset")
	assert.Equal(t, `<p><img src="https://cms.test/uploads/12.png"/></p>`, out.HTML)
}

func TestRelayImages_RemovesLinkedFeaturedImage(t *testing.T) {
	up := &fakeUploader{}
	r := NewRelay(up, WithUploadDelay(0))
	body := `<p><a href="https://source.example/full.png">` + dataImg("hero") + `</a></p><p>metin</p>` +
		`<figure><a href="https://x.example">` + dataImg("second") + `</a><figcaption>alt yazı</figcaption></figure>`

	out, err := r.RelayImages(context.Background(), body, site, "c")
	require.NoError(t, err)
	require.NotNil(t, out.FeaturedMediaID)
	assert.NotContains(t, out.HTML, "source.example")
	assert.Equal(t, `<p>metin</p><figure><a href="https://x.example"><img alt="second" src="https://cms.test/uploads/12.png"/></a><figcaption>alt yazı</figcaption></figure>`, out.HTML)
}

func TestRelayImages_DownloadsRemoteWithRetry(t *testing.T) {
	png, err := base64.StdEncoding.DecodeString(pixelPNG)
	require.NoError(t, err)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky.png":
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(png)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	up := &fakeUploader{}
	r := NewRelay(up, WithUploadDelay(0), WithRetry(fastRetry()), WithHTTPClient(srv.Client()), WithDownloadTimeout(time.Second))
	body := `<img src="` + srv.URL + `/missing.jpg"><img src="` + srv.URL + `/flaky.png">`

	out, err := r.RelayImages(context.Background(), body, site, "c")
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, out.Failed)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "image/png", up.uploads[0].mimeType)
	assert.Equal(t, "c-1.png", up.uploads[0].filename)
	require.NotNil(t, out.FeaturedMediaID)
	assert.Contains(t, out.HTML, "/missing.jpg")
}

func TestRelayImages_DelaysBetweenUploads(t *testing.T) {
	up := &fakeUploader{}
	r := NewRelay(up, WithUploadDelay(20*time.Millisecond))

	_, err := r.RelayImages(context.Background(), dataImg("a")+dataImg("b")+dataImg("c"), site, "c")
	require.NoError(t, err)

	require.Len(t, up.uploads, 3)
	assert.GreaterOrEqual(t, up.uploads[1].at.Sub(up.uploads[0].at), 20*time.Millisecond)
	assert.GreaterOrEqual(t, up.uploads[2].at.Sub(up.uploads[1].at), 20*time.Millisecond)
}

func TestRelayImages_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUploader{}
	r := NewRelay(uploaderFunc(func(c context.Context, s domain.Site, f, m string, d []byte) (wordpress.Media, error) {
		cancel()
		return up.UploadMedia(c, s, f, m, d)
	}), WithUploadDelay(time.Second))

	_, err := r.RelayImages(ctx, dataImg("a")+dataImg("b"), site, "c")
	assert.True(t, errors.Is(err, context.Canceled))
}

type uploaderFunc func(ctx context.Context, site domain.Site, filename, mimeType string, data []byte) (wordpress.Media, error)

func (f uploaderFunc) UploadMedia(ctx context.Context, site domain.Site, filename, mimeType string, data []byte) (wordpress.Media, error) {
	return f(ctx, site, filename, mimeType, data)
}
