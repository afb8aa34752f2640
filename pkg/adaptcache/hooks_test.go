package adaptcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHookExecution(t *testing.T) {
	var hitCount, missCount, evictCount, invalidateCount int32

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&hitCount, 1)
	})
	hooks.AddOnMiss(func(_ context.Context, _ string) {
		atomic.AddInt32(&missCount, 1)
	})
	hooks.AddOnEvict(func(_ context.Context, _ string, _ any, _ EvictReason) {
		atomic.AddInt32(&evictCount, 1)
	})
	hooks.AddOnInvalidate(func(_ context.Context, _ string) {
		atomic.AddInt32(&invalidateCount, 1)
	})

	cache := newTestCache(t, testConfig().WithMaxItems(2).WithHooks(hooks))

	// Test OnMiss hook
	_, found := cache.Get("nonexistent")
	if found {
		t.Fatal("Expected miss")
	}
	if atomic.LoadInt32(&missCount) != 1 {
		t.Fatalf("Expected 1 miss hook call, got %d", missCount)
	}

	// Test OnHit hook
	_ = cache.Set("key1", "value1", WithTTL(TestTTL))
	_, found = cache.Get("key1")
	if !found {
		t.Fatal("Expected hit")
	}
	if atomic.LoadInt32(&hitCount) != 1 {
		t.Fatalf("Expected 1 hit hook call, got %d", hitCount)
	}

	// Test OnInvalidate hook
	cache.Invalidate("key1")
	if atomic.LoadInt32(&invalidateCount) != 1 {
		t.Fatalf("Expected 1 invalidate hook call, got %d", invalidateCount)
	}

	// Invalidating an absent key is silent
	cache.Invalidate("key1")
	if atomic.LoadInt32(&invalidateCount) != 1 {
		t.Fatalf("Expected invalidate hook to stay at 1, got %d", invalidateCount)
	}

	// Test OnEvict hook
	_ = cache.Set("key2", "value2", WithTTL(TestTTL))
	_ = cache.Set("key3", "value3", WithTTL(TestTTL))
	_ = cache.Set("key4", "value4", WithTTL(TestTTL))

	if atomic.LoadInt32(&evictCount) != 1 {
		t.Fatalf("Expected 1 evict hook call, got %d", evictCount)
	}
}

func TestHookParameters(t *testing.T) {
	var capturedKeys []string
	var capturedValues []any
	var capturedReasons []EvictReason
	var mu sync.Mutex

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, key string, value any) {
		mu.Lock()
		capturedKeys = append(capturedKeys, key)
		capturedValues = append(capturedValues, value)
		mu.Unlock()
	})
	hooks.AddOnEvict(func(_ context.Context, key string, value any, reason EvictReason) {
		mu.Lock()
		capturedKeys = append(capturedKeys, key)
		capturedValues = append(capturedValues, value)
		capturedReasons = append(capturedReasons, reason)
		mu.Unlock()
	})

	cache := newTestCache(t, testConfig().WithMaxItems(1).WithHooks(hooks))

	testKey := "test-key"
	testValue := "test-value"

	_ = cache.Set(testKey, testValue, WithTTL(TestTTL))
	cache.Get(testKey)

	mu.Lock()
	if len(capturedKeys) != 1 {
		t.Fatalf("Expected 1 captured key, got %d", len(capturedKeys))
	}
	if capturedKeys[0] != testKey {
		t.Fatalf("Expected key '%s', got '%s'", testKey, capturedKeys[0])
	}
	if capturedValues[0] != testValue {
		t.Fatalf("Expected value '%s', got '%v'", testValue, capturedValues[0])
	}
	mu.Unlock()

	// Evicts the previous entry synchronously
	_ = cache.Set("new-key", "new-value", WithTTL(TestTTL))

	mu.Lock()
	defer mu.Unlock()
	if len(capturedKeys) != 2 {
		t.Fatalf("Expected 2 captured keys (hit + evict), got %d", len(capturedKeys))
	}
	if capturedKeys[1] != testKey {
		t.Fatalf("Expected evicted key '%s', got '%s'", testKey, capturedKeys[1])
	}
	if capturedValues[1] != testValue {
		t.Fatalf("Expected evicted value '%s', got '%v'", testValue, capturedValues[1])
	}
	if capturedReasons[0] != EvictReasonCapacity {
		t.Fatalf("Expected reason Capacity, got %s", capturedReasons[0])
	}
}

func TestHookConcurrency(t *testing.T) {
	var hookCallCount int32

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&hookCallCount, 1)
	})
	hooks.AddOnMiss(func(_ context.Context, _ string) {
		atomic.AddInt32(&hookCallCount, 1)
	})

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	for i := 0; i < 10; i++ {
		_ = cache.Set(fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i), WithTTL(TestTTL))
	}

	var wg sync.WaitGroup
	const numGoroutines = 50
	const numOperations = 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				if j%2 == 0 {
					cache.Get(fmt.Sprintf("key%d", j%10))
				} else {
					cache.Get(fmt.Sprintf("nonexistent-%d-%d", id, j))
				}
			}
		}(i)
	}

	// Registering while hooks run must not race with invocation
	hooks.AddOnInvalidate(func(_ context.Context, _ string) {})

	wg.Wait()

	expectedCalls := int32(numGoroutines * numOperations)
	actualCalls := atomic.LoadInt32(&hookCallCount)

	if actualCalls != expectedCalls {
		t.Fatalf("Expected %d hook calls, got %d", expectedCalls, actualCalls)
	}
}

func TestMultipleHooksOfSameType(t *testing.T) {
	var hook1Calls, hook2Calls int32

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&hook1Calls, 1)
	})
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&hook2Calls, 1)
	})

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	_ = cache.Set("key1", "value1")
	cache.Get("key1")

	if atomic.LoadInt32(&hook1Calls) != 1 {
		t.Fatalf("Expected hook1 to be called once, got %d", hook1Calls)
	}
	if atomic.LoadInt32(&hook2Calls) != 1 {
		t.Fatalf("Expected hook2 to be called once, got %d", hook2Calls)
	}
}

func TestHookIntegrationWithGetOrLoad(t *testing.T) {
	var hitCalls, missCalls int32

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&hitCalls, 1)
	})
	hooks.AddOnMiss(func(_ context.Context, _ string) {
		atomic.AddInt32(&missCalls, 1)
	})

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	loader := func(_ context.Context, key string) (any, error) {
		return strings.ToUpper(key), nil
	}

	result1, err := cache.GetOrLoad(context.Background(), "double", loader)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result1 != "DOUBLE" {
		t.Fatalf("Expected DOUBLE, got %v", result1)
	}
	if atomic.LoadInt32(&missCalls) != 1 {
		t.Fatalf("Expected 1 miss call, got %d", missCalls)
	}

	result2, err := cache.GetOrLoad(context.Background(), "double", loader)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result2 != "DOUBLE" {
		t.Fatalf("Expected DOUBLE, got %v", result2)
	}
	if atomic.LoadInt32(&hitCalls) != 1 {
		t.Fatalf("Expected 1 hit call, got %d", hitCalls)
	}
}

func TestNilHooks(t *testing.T) {
	cache := newTestCache(t, testConfig().WithHooks(nil))

	_ = cache.Set("key1", "value1")
	cache.Get("key1")
	cache.Get("nonexistent")
	cache.Invalidate("key1")
}

func TestEmptyHooks(t *testing.T) {
	cache := newTestCache(t, testConfig().WithHooks(&Hooks{}))

	_ = cache.Set("key1", "value1")
	cache.Get("key1")
	cache.Get("nonexistent")
	cache.Invalidate("key1")
}

func TestHookOrder(t *testing.T) {
	var executionOrder []int
	var mu sync.Mutex

	record := func(n int) func(context.Context, string, any) {
		return func(_ context.Context, _ string, _ any) {
			mu.Lock()
			executionOrder = append(executionOrder, n)
			mu.Unlock()
		}
	}

	hooks := NewHooks()
	hooks.AddOnHit(record(1), WithHookOrder(10))
	hooks.AddOnHit(record(2), WithHookOrder(100))
	hooks.AddOnHit(record(3), WithHookOrder(50))
	hooks.AddOnHit(record(4), WithHookOrder(50))

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	_ = cache.Set("key1", "value1")
	cache.Get("key1")

	mu.Lock()
	defer mu.Unlock()

	// Higher order first; equal orders keep registration order
	expected := []int{2, 3, 4, 1}
	if fmt.Sprint(executionOrder) != fmt.Sprint(expected) {
		t.Fatalf("Expected execution order %v, got %v", expected, executionOrder)
	}
}

func TestHookCondition(t *testing.T) {
	var calls int32

	hooks := NewHooks()
	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		atomic.AddInt32(&calls, 1)
	}, WithHookCondition(func(_ context.Context, key string) bool {
		return strings.HasPrefix(key, "cached:")
	}))

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	_ = cache.Set("cached:key1", "value1")
	cache.Get("cached:key1")

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("Expected 1 hook call, got %d", calls)
	}

	_ = cache.Set("other:key2", "value2")
	cache.Get("other:key2")

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("Expected still 1 hook call (condition not met), got %d", calls)
	}
}

func TestHookOrderAndCondition(t *testing.T) {
	var executionOrder []int
	var mu sync.Mutex

	hooks := NewHooks()

	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		mu.Lock()
		executionOrder = append(executionOrder, 1)
		mu.Unlock()
	}, WithHookOrder(100), WithHookCondition(func(_ context.Context, key string) bool {
		return key == "special"
	}))

	hooks.AddOnHit(func(_ context.Context, _ string, _ any) {
		mu.Lock()
		executionOrder = append(executionOrder, 2)
		mu.Unlock()
	}, WithHookOrder(10))

	cache := newTestCache(t, testConfig().WithHooks(hooks))

	_ = cache.Set("special", "value1")
	cache.Get("special")

	mu.Lock()
	if len(executionOrder) != 2 {
		t.Fatalf("Expected 2 hooks to execute, got %d", len(executionOrder))
	}
	if executionOrder[0] != 1 || executionOrder[1] != 2 {
		t.Fatalf("Expected execution order [1, 2], got %v", executionOrder)
	}
	executionOrder = nil
	mu.Unlock()

	_ = cache.Set("regular", "value2")
	cache.Get("regular")

	mu.Lock()
	if len(executionOrder) != 1 {
		t.Fatalf("Expected 1 hook to execute, got %d", len(executionOrder))
	}
	if executionOrder[0] != 2 {
		t.Fatalf("Expected hook #2 to execute, got #%d", executionOrder[0])
	}
	mu.Unlock()
}

func TestHooksCanReenterCache(t *testing.T) {
	hooks := NewHooks()
	cache := newTestCache(t, testConfig().WithHooks(hooks))

	// Hooks run outside the store lock, so reading the cache here must not deadlock
	var seen atomic.Bool
	hooks.AddOnMiss(func(_ context.Context, key string) {
		seen.Store(cache.Has(key))
	})

	cache.Get("absent")
	if seen.Load() {
		t.Fatal("Expected absent key to stay absent")
	}
}

func TestEvictReasonString(t *testing.T) {
	if EvictReasonCapacity.String() != "Capacity" {
		t.Fatalf("Expected Capacity, got %s", EvictReasonCapacity)
	}
	if EvictReasonExpired.String() != "Expired" {
		t.Fatalf("Expected Expired, got %s", EvictReasonExpired)
	}
	if EvictReason(99).String() != "Unknown" {
		t.Fatalf("Expected Unknown, got %s", EvictReason(99))
	}
}
