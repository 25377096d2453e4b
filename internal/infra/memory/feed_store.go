package memory

import (
	"sync"

	"assessment-service/internal/app"
)

// FeedStore is an in-memory implementation of app.FeedRepository.
type FeedStore struct {
	mu    sync.RWMutex
	feeds map[string]*app.Feed
}

func NewFeedStore() *FeedStore {
	return &FeedStore{
		feeds: make(map[string]*app.Feed),
	}
}

func (s *FeedStore) GetOrCreate(assessmentID string) *app.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[assessmentID]; ok {
		return feed
	}
	feed := app.NewFeed(assessmentID)
	s.feeds[assessmentID] = feed
	return feed
}

func (s *FeedStore) Get(assessmentID string) (*app.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[assessmentID]
	return feed, ok
}

func (s *FeedStore) DeleteIfEmpty(assessmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[assessmentID]
	if !ok {
		return
	}
	if feed.IsEmpty() {
		delete(s.feeds, assessmentID)
	}
}
