package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// maxInflatedBody caps a decompressed request body.
const maxInflatedBody = 1 << 20

// GzipRequestMiddleware inflates request bodies sent with Content-Encoding:
// gzip. Bodies that are not valid gzip get a 400.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !acceptsGzip(req.Header.Values(echo.HeaderContentEncoding)) {
				return next(c)
			}
			body, err := inflate(req.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = body
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func acceptsGzip(values []string) bool {
	for _, v := range values {
		for _, enc := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
				return true
			}
		}
	}
	return false
}

// inflatedBody reads the decompressed stream and closes both layers.
type inflatedBody struct {
	io.Reader
	zr  *gzip.Reader
	raw io.Closer
}

func inflate(raw io.ReadCloser) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &inflatedBody{Reader: io.LimitReader(zr, maxInflatedBody), zr: zr, raw: raw}, nil
}

func (b *inflatedBody) Close() error {
	return errors.Join(b.zr.Close(), b.raw.Close())
}
