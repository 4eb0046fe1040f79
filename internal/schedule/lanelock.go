package schedule

import (
	"context"
	"sync"
)

// laneLocks is a set of per-vehicle mutexes. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type laneLocks struct {
	mu    sync.Mutex
	lanes map[string]*laneLock
}

type laneLock struct {
	sem  chan struct{}
	refs int
}

func newLaneLocks() *laneLocks {
	return &laneLocks{lanes: make(map[string]*laneLock)}
}

// Lock blocks until the lane is free or ctx is done. On success the caller
// must invoke the returned unlock exactly once.
func (l *laneLocks) Lock(ctx context.Context, vehicleID string) (func(), error) {
	l.mu.Lock()
	lane, ok := l.lanes[vehicleID]
	if !ok {
		lane = &laneLock{sem: make(chan struct{}, 1)}
		l.lanes[vehicleID] = lane
	}
	lane.refs++
	l.mu.Unlock()

	select {
	case lane.sem <- struct{}{}:
		return func() {
			<-lane.sem
			l.release(vehicleID, lane)
		}, nil
	case <-ctx.Done():
		l.release(vehicleID, lane)
		return nil, ctx.Err()
	}
}

func (l *laneLocks) release(vehicleID string, lane *laneLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lane.refs--
	if lane.refs == 0 {
		delete(l.lanes, vehicleID)
	}
}

// size returns the number of live lane entries.
func (l *laneLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
