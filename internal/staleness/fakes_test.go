package staleness

import (
	"context"
	"sync"
)

type fakeEvents struct {
	mu     sync.Mutex
	events map[int]*Event
	errs   map[int]error
	calls  map[int]int
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		events: map[int]*Event{},
		errs:   map[int]error{},
		calls:  map[int]int{},
	}
}

func (f *fakeEvents) LatestEvent(_ context.Context, issueNumber int) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[issueNumber]++
	if err, ok := f.errs[issueNumber]; ok {
		return nil, err
	}
	return f.events[issueNumber], nil
}

func (f *fakeEvents) callCount(issueNumber int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[issueNumber]
}

type fakeCards struct {
	cards map[int64][]Card
	errs  map[int64]error
}

func (f *fakeCards) ColumnCards(_ context.Context, columnID int64) ([]Card, error) {
	if err, ok := f.errs[columnID]; ok {
		return nil, err
	}
	return f.cards[columnID], nil
}
