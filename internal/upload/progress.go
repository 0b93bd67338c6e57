package upload

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ProgressFunc receives the bytes sent so far and the total size.
type ProgressFunc func(sent, total int64)

type ProgressReader struct {
	r     io.Reader
	total int64
	sent  atomic.Int64
	fn    ProgressFunc
}

func NewProgressReader(r io.Reader, total int64, fn ProgressFunc) *ProgressReader {
	return &ProgressReader{r: r, total: total, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		sent := p.sent.Add(int64(n))
		if p.fn != nil {
			p.fn(sent, p.total)
		}
	}
	return n, err
}

func (p *ProgressReader) Sent() int64 { return p.sent.Load() }

// LogQuarters logs progress each time another 25% of the total is sent.
func LogQuarters(log zerolog.Logger, name string) ProgressFunc {
	var last atomic.Int64
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		q := sent * 4 / total
		if q > 4 {
			q = 4
		}
		if prev := last.Load(); q <= prev || !last.CompareAndSwap(prev, q) {
			return
		}
		log.Debug().
			Str("file", name).
			Int64("sent", sent).
			Int64("total", total).
			Int64("percent", q*25).
			Msg("upload progress")
	}
}
