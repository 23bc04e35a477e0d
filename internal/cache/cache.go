package cache

import (
	"sync"
	"time"

	"expensetracker/internal/log"
)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans the caches registered with it.
type Janitor struct {
	logger *log.Logger

	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Janitor{
		logger: logger.WithComponent(log.ComponentStatic),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	j.caches = append(j.caches, c)
	j.mu.Unlock()
}

// Start cleans every interval until Stop is called.
func (j *Janitor) Start(interval time.Duration) {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := j.CleanNow(); n > 0 {
					j.logger.Debug("Cache cleanup completed", "entries_removed", n)
				}
			case <-j.stop:
				return
			}
		}
	}()
}

// CleanNow runs one cleanup pass over all registered caches.
func (j *Janitor) CleanNow() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the cleanup loop and waits for it. It is safe to call more than
// once, and before Start.
func (j *Janitor) Stop() {
	j.stopped.Do(func() {
		close(j.stop)
	})
	select {
	case <-j.done:
	case <-time.After(time.Second):
	}
}
