package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"reelforge/internal/config"
)

type jitterSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newJitterSource() *jitterSource {
	return &jitterSource{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (j *jitterSource) int63n(n int64) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Int63n(n)
}

// backoffDelay computes the wait after a failed attempt: the base delay
// doubled per attempt, capped, then jittered across the full range so
// concurrent retries against one provider spread out instead of
// thundering back together.
func (s *Scheduler) backoffDelay(limits config.CapabilityLimits, attempt int) time.Duration {
	base := time.Duration(limits.BaseDelayMS) * time.Millisecond
	if base <= 0 {
		base = time.Second
	}
	ceiling := time.Duration(limits.MaxDelayMS) * time.Millisecond
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			delay = ceiling
			break
		}
	}
	if delay <= 0 {
		return 0
	}
	return time.Duration(s.rng.int63n(int64(delay)) + 1)
}
