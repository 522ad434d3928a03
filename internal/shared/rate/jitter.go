package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Jitter exposes a rate-limited tick channel. The limiter spreads takes
// evenly across the second, so consumers never burst-scan the store.
type Jitter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

func NewJitter(ctx context.Context, limit int) *Jitter {
	if limit < 1 {
		limit = 1
	}
	burst := int(float64(limit) * 0.1)
	if burst < 1 {
		burst = 1
	}
	jitter := &Jitter{
		limit: limit,
		ch:    make(chan struct{}, burst),
		l:     ratelimit.New(limit),
	}
	go jitter.provider(ctx)
	return jitter
}

func (l *Jitter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

func (l *Jitter) Take() {
	<-l.ch
}

func (l *Jitter) Chan() <-chan struct{} {
	return l.ch
}
