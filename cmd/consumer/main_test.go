package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AuraReaper/voom/internal/models"
)

type flakyIndex struct {
	failures int
	calls    int
}

func (f *flakyIndex) Upsert(_ context.Context, actorID string, _ models.Coordinate) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("redis unavailable")
	}
	return "ttnfv2u", nil
}

func TestUpdateIndexRecoversAfterRetries(t *testing.T) {
	idx := &flakyIndex{failures: 2}
	err := updateIndexWithRetry(context.Background(), idx, "d1", models.Coordinate{Latitude: 28.6, Longitude: 77.2}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if idx.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", idx.calls)
	}
}

func TestUpdateIndexGivesUpAfterAttempts(t *testing.T) {
	idx := &flakyIndex{failures: 10}
	err := updateIndexWithRetry(context.Background(), idx, "d1", models.Coordinate{Latitude: 28.6, Longitude: 77.2}, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if idx.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", idx.calls)
	}
}

func TestWaitOrDoneStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if waitOrDone(ctx, time.Minute) {
		t.Fatal("cancelled context should cut the wait short")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait did not return promptly after cancellation")
	}
	if !waitOrDone(context.Background(), time.Millisecond) {
		t.Fatal("undisturbed wait should elapse")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("got %v", got)
	}
	if got := splitBrokers(""); got != nil {
		t.Fatalf("empty input should yield nil, got %v", got)
	}
}
