package client

import (
	"io"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every reader it wraps. It caps upload bandwidth.
type RateLimiter struct {
	mu     sync.Mutex
	rate   int64   // bytes per second
	tokens float64 // bytes available right now
	last   time.Time
}

// NewRateLimiter returns a limiter for bytesPerSecond, or nil (no limit) when it is not positive.
func NewRateLimiter(bytesPerSecond int64) *RateLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &RateLimiter{rate: bytesPerSecond, tokens: float64(bytesPerSecond), last: time.Now()}
}

// Reader wraps r. A nil limiter returns r unchanged.
func (l *RateLimiter) Reader(r io.Reader) io.Reader {
	if l == nil {
		return r
	}
	return &limitedReader{under: r, lim: l}
}

// Limit wraps every file of body so the whole form shares the limiter's budget.
func (l *RateLimiter) Limit(body *MultipartBody) *MultipartBody {
	if l == nil || body == nil {
		return body
	}
	out := &MultipartBody{Fields: body.Fields, Files: make([]FilePart, len(body.Files))}
	for i, f := range body.Files {
		open := f.Open
		f.Open = func() (io.ReadCloser, error) {
			rc, err := open()
			if err != nil {
				return nil, err
			}
			return readCloser{Reader: l.Reader(rc), Closer: rc}, nil
		}
		out.Files[i] = f
	}
	return out
}

// take refills the bucket and returns how many bytes may be read now, waiting when it is empty.
func (l *RateLimiter) take(want int) int {
	for {
		l.mu.Lock()
		if l.rate <= 0 {
			l.mu.Unlock()
			return want
		}
		now := time.Now()
		if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
			l.tokens += elapsed * float64(l.rate)
			if ceiling := float64(l.rate); l.tokens > ceiling {
				l.tokens = ceiling
			}
			l.last = now
		}
		allowed := int(l.tokens)
		rate := l.rate
		l.mu.Unlock()

		if allowed > 0 {
			if want > allowed {
				return allowed
			}
			return want
		}
		time.Sleep(time.Duration(float64(time.Second) / float64(rate)))
	}
}

func (l *RateLimiter) spend(n int) {
	l.mu.Lock()
	l.tokens -= float64(n)
	l.mu.Unlock()
}

type limitedReader struct {
	under io.Reader
	lim   *RateLimiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.lim == nil || len(p) == 0 {
		return lr.under.Read(p)
	}
	p = p[:lr.lim.take(len(p))]
	n, err := lr.under.Read(p)
	if n > 0 {
		lr.lim.spend(n)
	}
	return n, err
}

type readCloser struct {
	io.Reader
	io.Closer
}
