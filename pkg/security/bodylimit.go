package security

import (
	"errors"
	"io"
	"net/http"
)

// ErrBodyTooLarge is returned by the limited body reader the instant the
// running byte total crosses the ceiling
var ErrBodyTooLarge = errors.New("request body exceeds the configured size limit")

// limitedBody counts bytes as they stream in and fails fast on the byte
// that crosses the ceiling, so memory exposure is bounded regardless of
// the declared or actual body size
type limitedBody struct {
	body      io.ReadCloser
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrBodyTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		// read at most one byte past the ceiling so overflow is detected
		// without buffering the rest
		p = p[:l.remaining+1]
	}
	n, err := l.body.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrBodyTooLarge
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.body.Close()
}

// LimitBody replaces the request body with a counting reader that aborts
// once more than max bytes are received
func LimitBody(r *http.Request, max int64) {
	if r.Body == nil || r.Body == http.NoBody {
		return
	}
	r.Body = &limitedBody{body: r.Body, remaining: max}
}
