package httputil

import (
	"errors"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error: %v", err)
	}

	want := map[string]string{"WorldEdit": "6.1.9"}
	if err := c.Set("listings", want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got := map[string]string{}
	ok, err := c.Get("listings", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want true, nil", ok, err)
	}
	if got["WorldEdit"] != "6.1.9" {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCacheMiss(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	var v string
	ok, err := c.Get("absent", &v)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() returned true for missing key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, _ := NewCache(t.TempDir(), 10*time.Millisecond)
	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	var v string
	ok, err := c.Get("k", &v)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}
	if ok {
		t.Error("Get() returned true for expired key")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	var v string
	if ok, _ := c.Get("k", &v); ok {
		t.Error("Get() returned true after Invalidate")
	}
	// Invalidating a missing key is a no-op, not an error.
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("second Invalidate() error: %v", err)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	a := c.Namespace("bukkit:")
	b := c.Namespace("spiget:")
	_ = a.Set("WorldEdit", 1)
	_ = b.Set("WorldEdit", 2)

	if err := c.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll() error: %v", err)
	}

	var v int
	if ok, _ := a.Get("WorldEdit", &v); ok {
		t.Error("namespace a still has entry after InvalidateAll")
	}
	if ok, _ := b.Get("WorldEdit", &v); ok {
		t.Error("namespace b still has entry after InvalidateAll")
	}
}

func TestCacheNamespaceIsolation(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	a := c.Namespace("bukkit:")
	b := c.Namespace("spiget:")

	if err := a.Set("WorldEdit", "from-a"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	var v string
	if ok, _ := b.Get("WorldEdit", &v); ok {
		t.Error("namespaces should not share entries for the same key")
	}
	if ok, _ := a.Get("WorldEdit", &v); !ok || v != "from-a" {
		t.Errorf("Get() = %v, %q; want true, \"from-a\"", ok, v)
	}
}
