package cache

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemory(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	if c.items == nil {
		t.Fatal("NewMemory() returned cache with nil items map")
	}
	if c.ttl != time.Minute {
		t.Errorf("NewMemory() ttl = %v, want %v", c.ttl, time.Minute)
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("list:", "value1")

	got, ok := c.Get("list:")
	if !ok {
		t.Error("Get() returned false for existing key")
	}
	if got != "value1" {
		t.Errorf("Get() = %v, want %v", got, "value1")
	}
}

func TestMemoryCache_Get_NotFound(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	got, ok := c.Get("nonexistent")
	if ok {
		t.Error("Get() should return false for non-existent key")
	}
	if got != nil {
		t.Errorf("Get() should return nil for non-existent key, got %v", got)
	}
}

func TestMemoryCache_Get_Expired(t *testing.T) {
	c := NewMemory(50 * time.Millisecond)
	defer c.Stop()

	c.Set("key1", "value1")

	if _, ok := c.Get("key1"); !ok {
		t.Error("Get() should return true for fresh key")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Error("Get() should return false for expired key")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Error("Get() should return false after Delete()")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Clear()

	if _, ok := c.Get("key1"); ok {
		t.Error("Get() should return false after Clear()")
	}
	if _, ok := c.Get("key2"); ok {
		t.Error("Get() should return false after Clear()")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("shared", n)
			c.Get("shared")
			if n%5 == 0 {
				c.Clear()
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_RemoveExpired(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	defer c.Stop()

	c.Set("key1", "value1")
	time.Sleep(20 * time.Millisecond)
	c.removeExpired()

	c.mu.RLock()
	_, present := c.items["key1"]
	c.mu.RUnlock()
	if present {
		t.Error("removeExpired() left an expired entry behind")
	}
}
