package ldap

import (
	"sync"
	"time"
)

// timerHandle wraps time.AfterFunc with an idempotent stop, since both
// the firing callback and the code that retires the timer early
// (request completed before it fired) may race to stop it.
type timerHandle struct {
	t    *time.Timer
	once sync.Once
}

func afterFunc(d time.Duration, f func()) *timerHandle {
	h := &timerHandle{}
	h.t = time.AfterFunc(d, f)
	return h
}

func (h *timerHandle) stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.t.Stop()
	})
}
