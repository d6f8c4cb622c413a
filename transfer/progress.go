package transfer

import (
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// progressReader counts bytes read from the file into the request body.
// Reports are throttled; the first read and completion are always reported.
// Read runs on the http.Transport writer goroutine, finish on the caller's.
type progressReader struct {
	mu       sync.Mutex
	r        io.Reader
	total    int64
	read     int64
	last     float64
	limiter  *rate.Limiter
	report   func(percent float64)
	reported bool
}

func newProgressReader(r io.Reader, total int64, interval time.Duration, report func(percent float64)) *progressReader {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &progressReader{
		r:       r,
		total:   total,
		last:    -1,
		limiter: rate.NewLimiter(limit, 1),
		report:  report,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.read += int64(n)
		if p.limiter.Allow() || !p.reported {
			p.emit(p.percent())
		}
	}
	return n, err
}

func (p *progressReader) percent() float64 {
	if p.total <= 0 {
		return 0
	}
	pct := float64(p.read) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// finish reports 100% once the whole body has been handed to the transport.
func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(100)
}

func (p *progressReader) emit(pct float64) {
	if p.report == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.reported = true
	p.report(pct)
}
