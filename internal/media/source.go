package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
)

const (
	maxImageBytes   = 20 << 20
	defaultMimeType = "image/jpeg"
)

var errUnsupportedSource = errors.New("unsupported image source")

// image is a fetched image ready for upload.
type image struct {
	data     []byte
	mimeType string
	source   string // "data" or "remote"
}

// decodeDataURL decodes an RFC 2397 data URL.
func decodeDataURL(src string) (image, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return image{}, errUnsupportedSource
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return image{}, fmt.Errorf("malformed data url: missing comma")
	}
	params := strings.Split(header, ";")
	mimeType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	var err error
	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return image{}, fmt.Errorf("decode data url: %w", err)
	}
	if len(data) == 0 {
		return image{}, fmt.Errorf("empty data url")
	}
	return image{data: data, mimeType: normalizeMime(mimeType, data), source: "data"}, nil
}

// download fetches a remote image, retrying network errors and 5xx responses.
func (r *Relay) download(ctx context.Context, src string) (image, error) {
	var img image
	op := func() error {
		dctx, cancel := context.WithTimeout(ctx, r.downloadTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(dctx, http.MethodGet, src, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "image/*")
		resp, err := r.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("download %s: status %d", src, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("download %s: status %d", src, resp.StatusCode))
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return err
		}
		if len(data) > maxImageBytes {
			return backoff.Permanent(fmt.Errorf("download %s: image larger than %d bytes", src, maxImageBytes))
		}
		if len(data) == 0 {
			return backoff.Permanent(fmt.Errorf("download %s: empty body", src))
		}
		ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		img = image{data: data, mimeType: normalizeMime(ct, data), source: "remote"}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(r.retry.BackOff(), ctx)); err != nil {
		return image{}, err
	}
	return img, nil
}

// normalizeMime keeps an explicit image type, sniffs generic or missing ones
// and falls back to JPEG.
func normalizeMime(declared string, data []byte) string {
	declared = strings.ToLower(declared)
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if sniffed := mimetype.Detect(data); strings.HasPrefix(sniffed.String(), "image/") {
		m, _, _ := mime.ParseMediaType(sniffed.String())
		return m
	}
	return defaultMimeType
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/svg+xml":
		return ".svg"
	}
	return ".jpg"
}
