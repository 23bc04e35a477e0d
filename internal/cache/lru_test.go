package cache

import (
	"errors"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_Expiry(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRU[string](10, time.Minute)
	c.now = clk.now

	c.Set("x", "1")
	c.Set("y", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("y", "3")

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Error("x should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0 (x already dropped by Get)", n)
	}
	clk.t = clk.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}

func TestLRU_GetOrCompute(t *testing.T) {
	c := NewLRU[string](4, time.Minute)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "etag", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", compute)
		if err != nil || v != "etag" {
			t.Fatalf("GetOrCompute() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCompute("bad", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("errors must not be cached")
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 3 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestJanitor(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	clk := &clock{t: time.Now()}
	c.now = clk.now
	c.Set("a", 1)

	j := NewJanitor(nil)
	j.Register(c)
	clk.t = clk.t.Add(2 * time.Minute)
	if n := j.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	j.Start(time.Hour)
	j.Stop()
	j.Stop()
}
