package service

import (
	"testing"
	"time"

	"facetrust/internal/domain"
)

func TestMemoryDatasetCache_HitOnSameFingerprint(t *testing.T) {
	cache := NewMemoryDatasetCache(time.Minute)
	ds := &domain.AggregatedDataset{Fingerprint: "abc", BuiltAt: time.Now().UTC()}

	cache.Put(ds)

	got, ok := cache.Get("abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Fingerprint != "abc" {
		t.Fatalf("unexpected dataset: %+v", got)
	}
}

func TestMemoryDatasetCache_MissOnChangedFingerprint(t *testing.T) {
	cache := NewMemoryDatasetCache(time.Minute)
	cache.Put(&domain.AggregatedDataset{Fingerprint: "abc"})

	if _, ok := cache.Get("def"); ok {
		t.Fatal("expected miss after directory change")
	}
}

func TestMemoryDatasetCache_Expires(t *testing.T) {
	cache := NewMemoryDatasetCache(time.Nanosecond)
	cache.Put(&domain.AggregatedDataset{Fingerprint: "abc"})

	time.Sleep(time.Millisecond)
	if _, ok := cache.Get("abc"); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestMemoryDatasetCache_Invalidate(t *testing.T) {
	cache := NewMemoryDatasetCache(time.Minute)
	cache.Put(&domain.AggregatedDataset{Fingerprint: "abc"})

	cache.Invalidate()
	if _, ok := cache.Get("abc"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestMemoryDatasetCache_IgnoresEmptyFingerprint(t *testing.T) {
	cache := NewMemoryDatasetCache(time.Minute)
	cache.Put(&domain.AggregatedDataset{Fingerprint: ""})

	if _, ok := cache.Get(""); ok {
		t.Fatal("expected empty fingerprint never cached")
	}
}
