package redis

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// FeedStore is a Redis-aware implementation of app.FeedRepository.
// Notes:
//   - Feeds live in a local map so the in-process fan-out in app.Feed is reused.
//   - Redis marks which assessments have a live dashboard on some instance, so an
//     operator (or another instance) can see where stats are being watched.
type FeedStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	feeds  map[string]*app.Feed
}

func NewFeedStore(client *redis.Client, ttl time.Duration) *FeedStore {
	return &FeedStore{
		client: client,
		ttl:    ttl,
		feeds:  make(map[string]*app.Feed),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(assessmentID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(assessmentID)).Err()
	}
}

func (s *FeedStore) key(assessmentID string) string {
	return "assessment:feed:" + assessmentID
}
