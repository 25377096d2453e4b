package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFeedStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewFeedStore(client, time.Minute)

	_ = store.GetOrCreate("quiz-1")
	if !mr.Exists("assessment:feed:quiz-1") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get("quiz-1"); !ok {
		t.Fatalf("expected feed kept locally")
	}

	store.DeleteIfEmpty("quiz-1")
	if mr.Exists("assessment:feed:quiz-1") {
		t.Fatalf("expected redis key to be removed")
	}
}
