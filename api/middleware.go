package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecompressRequestMiddleware inflates gzip request bodies so handlers always
// read plain JSON. Corrupt gzip payloads get a 400; any encoding other than
// gzip or identity gets a 415.
func DecompressRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			gz, err := requestIsGzip(req.Header.Get(echo.HeaderContentEncoding))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
			}
			if !gz {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = &inflatedBody{Reader: gr, raw: body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

type unsupportedEncodingError string

func (e unsupportedEncodingError) Error() string {
	return "unsupported content encoding " + string(e)
}

func requestIsGzip(header string) (bool, error) {
	gz := false
	for _, enc := range strings.Split(header, ",") {
		enc = strings.TrimSpace(enc)
		switch {
		case enc == "", strings.EqualFold(enc, "identity"):
		case strings.EqualFold(enc, "gzip"):
			gz = true
		default:
			return false, unsupportedEncodingError(enc)
		}
	}
	return gz, nil
}

type inflatedBody struct {
	*gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.Reader.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
