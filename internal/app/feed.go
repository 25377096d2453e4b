package app

import (
	"sync"

	"assessment-service/internal/domain"
)

// FeedRepository abstracts where live stats feeds are kept (in-memory, Redis-marked, etc).
type FeedRepository interface {
	GetOrCreate(assessmentID string) *Feed
	Get(assessmentID string) (*Feed, bool)
	DeleteIfEmpty(assessmentID string)
}

// Feed fans out assessment stats to connected owner dashboards.
type Feed struct {
	mu          sync.RWMutex
	latest      domain.AssessmentStats
	subscribers map[chan domain.AssessmentStats]struct{}
}

// NewFeed is exported for infrastructure layers that keep feeds.
func NewFeed(id string) *Feed {
	return &Feed{
		latest:      domain.AssessmentStats{AssessmentID: id},
		subscribers: make(map[chan domain.AssessmentStats]struct{}),
	}
}

// IsEmpty reports whether nobody is listening.
func (f *Feed) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers) == 0
}

func (f *Feed) publish(stats domain.AssessmentStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = stats
	for ch := range f.subscribers {
		select {
		case ch <- stats:
		default:
			// Drop the stale update so a slow dashboard never blocks a submission.
			select {
			case <-ch:
			default:
			}
			ch <- stats
		}
	}
}

func (f *Feed) subscribe(initial *domain.AssessmentStats) (<-chan domain.AssessmentStats, func()) {
	ch := make(chan domain.AssessmentStats, 8)

	f.mu.Lock()
	if initial != nil {
		f.latest = *initial
	}
	f.subscribers[ch] = struct{}{}
	ch <- f.latest
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}
