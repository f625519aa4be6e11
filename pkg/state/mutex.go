package state

import "time"

// timedMutex is a mutex with a bounded acquisition: a one-slot channel
// whose send is raced against a timer. sync.Mutex offers TryLock but no
// deadline, and the control loops need "wait a little, then give up".
type timedMutex chan struct{}

func newTimedMutex() timedMutex {
	return make(timedMutex, 1)
}

// lock attempts to acquire within timeout. A non-positive timeout degrades
// to a bare try.
func (m timedMutex) lock(timeout time.Duration) bool {
	select {
	case m <- struct{}{}:
		return true
	default:
	}

	if timeout <= 0 {
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case m <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (m timedMutex) unlock() {
	<-m
}
