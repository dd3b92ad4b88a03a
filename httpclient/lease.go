package httpclient

import (
	"sync"
	"time"
)

type idleCloser interface {
	CloseIdleConnections()
}

// leaseRecycler closes the pooled connections of one transport on a fixed
// interval, so long-lived clients pick up DNS changes of the base address.
type leaseRecycler struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startLeaseRecycler(pool idleCloser, every time.Duration, onRecycle func()) *leaseRecycler {
	l := &leaseRecycler{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run(pool, every, onRecycle)
	return l
}

func (l *leaseRecycler) run(pool idleCloser, every time.Duration, onRecycle func()) {
	defer close(l.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pool.CloseIdleConnections()
			if onRecycle != nil {
				onRecycle()
			}
		case <-l.stop:
			return
		}
	}
}

// Stop ends the recycler and waits for its goroutine. Safe to call twice.
func (l *leaseRecycler) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
}
