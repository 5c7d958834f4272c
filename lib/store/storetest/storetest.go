package storetest

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/lib/store"
)

// StoreFactory creates a new store that evaluates expiry against now
type StoreFactory func(now func() time.Time) store.IStore

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ts returns the epoch second d from now
func (c *fakeClock) ts(d time.Duration) uint32 {
	return uint32(c.Now().Add(d).Unix())
}

// RunIStoreTests runs the test suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory)
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory)
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory)
		})

		t.Run("TTL", func(t *testing.T) {
			testTTL(t, factory)
		})

		t.Run("MultiPut&MultiGet", func(t *testing.T) {
			testMultiPutMultiGet(t, factory)
		})

		t.Run("MultiGetLimits", func(t *testing.T) {
			testMultiGetLimits(t, factory)
		})

		t.Run("MultiRemove", func(t *testing.T) {
			testMultiRemove(t, factory)
		})

		t.Run("SortKeyCount", func(t *testing.T) {
			testSortKeyCount(t, factory)
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory)
		})

		t.Run("LastGroup", func(t *testing.T) {
			testLastGroup(t, factory)
		})

		t.Run("Decree", func(t *testing.T) {
			testDecree(t, factory)
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustKey(t testing.TB, hashKey, sortKey string) []byte {
	k, err := key.Encode([]byte(hashKey), []byte(sortKey))
	if err != nil {
		t.Fatalf("encode %q/%q: %v", hashKey, sortKey, err)
	}
	return k
}

func expectStatus(t testing.TB, op string, got, want store.Status) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected status %s, got %s", op, want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, factory StoreFactory) {
	clock := newFakeClock()
	s := factory(clock.Now)

	k := mustKey(t, "user", "name")

	_, status := s.Put(k, []byte("alice"), 0)
	expectStatus(t, "put", status, store.StatusOK)

	value, status := s.Get(k)
	expectStatus(t, "get", status, store.StatusOK)
	if !bytes.Equal(value, []byte("alice")) {
		t.Errorf("Expected value alice, got %s", value)
	}

	// Get should return a copy
	value[0] = 'X'
	value, _ = s.Get(k)
	if !bytes.Equal(value, []byte("alice")) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	_, status = s.Put(k, []byte("bob"), 0)
	expectStatus(t, "overwrite", status, store.StatusOK)
	value, _ = s.Get(k)
	if !bytes.Equal(value, []byte("bob")) {
		t.Errorf("Expected updated value bob, got %s", value)
	}

	_, status = s.Get(mustKey(t, "user", "missing"))
	expectStatus(t, "get missing", status, store.StatusNotFound)

	// empty hash key and empty values are valid
	empty := mustKey(t, "", "")
	_, status = s.Put(empty, []byte{}, 0)
	expectStatus(t, "put empty", status, store.StatusOK)
	_, status = s.Get(empty)
	expectStatus(t, "get empty", status, store.StatusOK)

	_, status = s.Put([]byte{0x00}, []byte("x"), 0)
	expectStatus(t, "put malformed", status, store.StatusInvalidArgument)
}

func testRemove(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)
	k := mustKey(t, "h", "s")

	s.Put(k, []byte("v"), 0)
	_, status := s.Remove(k)
	expectStatus(t, "remove", status, store.StatusOK)

	_, status = s.Get(k)
	expectStatus(t, "get removed", status, store.StatusNotFound)

	// removing a missing record is fine
	_, status = s.Remove(k)
	expectStatus(t, "remove missing", status, store.StatusOK)
}

func testExpiry(t *testing.T, factory StoreFactory) {
	clock := newFakeClock()
	s := factory(clock.Now)

	k := mustKey(t, "h", "expiring")
	s.Put(k, []byte("v"), clock.ts(10*time.Second))

	clock.Advance(9 * time.Second)
	if _, status := s.Get(k); status != store.StatusOK {
		t.Errorf("Key should still exist after 9s, got %s", status)
	}

	clock.Advance(time.Second)
	if _, status := s.Get(k); status != store.StatusNotFound {
		t.Errorf("Key should have expired after 10s, got %s", status)
	}
	if _, status := s.TTL(k); status != store.StatusNotFound {
		t.Errorf("TTL of expired key should be NotFound, got %s", status)
	}

	// writing again revives the key
	s.Put(k, []byte("v2"), 0)
	clock.Advance(1000 * time.Hour)
	if value, status := s.Get(k); status != store.StatusOK || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Key without expiry should never expire, got %s %q", status, value)
	}
}

func testTTL(t *testing.T, factory StoreFactory) {
	clock := newFakeClock()
	s := factory(clock.Now)

	forever := mustKey(t, "h", "forever")
	s.Put(forever, []byte("v"), 0)
	ttl, status := s.TTL(forever)
	expectStatus(t, "ttl", status, store.StatusOK)
	if ttl != -1 {
		t.Errorf("Expected ttl -1 for key without expiry, got %d", ttl)
	}

	timed := mustKey(t, "h", "timed")
	s.Put(timed, []byte("v"), clock.ts(100*time.Second))
	clock.Advance(40 * time.Second)
	ttl, _ = s.TTL(timed)
	if ttl != 60 {
		t.Errorf("Expected ttl 60, got %d", ttl)
	}

	_, status = s.TTL(mustKey(t, "h", "missing"))
	expectStatus(t, "ttl missing", status, store.StatusNotFound)
}

func testMultiPutMultiGet(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	kvs := []store.KeyValue{
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	_, status := s.MultiPut([]byte("group"), kvs, 0)
	expectStatus(t, "multi put", status, store.StatusOK)
	s.Put(mustKey(t, "other", "a"), []byte("x"), 0)

	// whole group in sort key order
	got, status := s.MultiGet([]byte("group"), nil, 0, 0, false)
	expectStatus(t, "multi get all", status, store.StatusOK)
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(got[i].Key) != want || string(got[i].Value) != fmt.Sprint(i+1) {
			t.Errorf("Record %d: expected %s=%d, got %s=%s", i, want, i+1, got[i].Key, got[i].Value)
		}
	}

	// explicit sort keys skip missing ones
	got, _ = s.MultiGet([]byte("group"), [][]byte{[]byte("c"), []byte("zz"), []byte("a"), []byte("c")}, 0, 0, false)
	if len(got) != 2 || string(got[0].Key) != "a" || string(got[1].Key) != "c" {
		t.Errorf("Expected records a and c, got %v", got)
	}

	// no value
	got, _ = s.MultiGet([]byte("group"), nil, 0, 0, true)
	for _, kv := range got {
		if kv.Value != nil {
			t.Errorf("Expected no value for %s, got %q", kv.Key, kv.Value)
		}
	}

	_, status = s.MultiPut([]byte("group"), nil, 0)
	expectStatus(t, "multi put empty", status, store.StatusInvalidArgument)
}

func testMultiGetLimits(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	var kvs []store.KeyValue
	for i := 0; i < 10; i++ {
		kvs = append(kvs, store.KeyValue{Key: []byte(fmt.Sprintf("k%02d", i)), Value: []byte("0123456789")})
	}
	s.MultiPut([]byte("h"), kvs, 0)

	got, status := s.MultiGet([]byte("h"), nil, 4, 0, false)
	expectStatus(t, "count bound", status, store.StatusIncomplete)
	if len(got) != 4 {
		t.Errorf("Expected 4 records, got %d", len(got))
	}

	// every record is 13 bytes, the record crossing the bound is still returned
	got, status = s.MultiGet([]byte("h"), nil, 0, 30, false)
	expectStatus(t, "size bound", status, store.StatusIncomplete)
	if len(got) != 3 {
		t.Errorf("Expected 3 records, got %d", len(got))
	}

	got, status = s.MultiGet([]byte("h"), nil, 10, 0, false)
	expectStatus(t, "exact bound", status, store.StatusOK)
	if len(got) != 10 {
		t.Errorf("Expected 10 records, got %d", len(got))
	}
}

func testMultiRemove(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	s.MultiPut([]byte("h"), []store.KeyValue{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}, 0)

	count, _, status := s.MultiRemove([]byte("h"), [][]byte{[]byte("a"), []byte("c"), []byte("missing")})
	expectStatus(t, "multi remove", status, store.StatusOK)
	if count != 2 {
		t.Errorf("Expected 2 removed records, got %d", count)
	}

	remaining, _ := s.MultiGet([]byte("h"), nil, 0, 0, true)
	if len(remaining) != 1 || string(remaining[0].Key) != "b" {
		t.Errorf("Expected only b to remain, got %v", remaining)
	}

	_, _, status = s.MultiRemove([]byte("h"), nil)
	expectStatus(t, "multi remove empty", status, store.StatusInvalidArgument)
}

func testSortKeyCount(t *testing.T, factory StoreFactory) {
	clock := newFakeClock()
	s := factory(clock.Now)

	s.Put(mustKey(t, "h", "a"), []byte("1"), 0)
	s.Put(mustKey(t, "h", "b"), []byte("2"), clock.ts(time.Second))
	s.Put(mustKey(t, "h", ""), []byte("3"), 0)
	s.Put(mustKey(t, "h2", "a"), []byte("4"), 0)
	s.Put(mustKey(t, "hh", "a"), []byte("5"), 0)

	count, status := s.SortKeyCount([]byte("h"))
	expectStatus(t, "count", status, store.StatusOK)
	if count != 3 {
		t.Errorf("Expected 3 sort keys, got %d", count)
	}

	clock.Advance(time.Second)
	count, _ = s.SortKeyCount([]byte("h"))
	if count != 2 {
		t.Errorf("Expected 2 sort keys after expiry, got %d", count)
	}

	count, _ = s.SortKeyCount([]byte("nothing"))
	if count != 0 {
		t.Errorf("Expected 0 sort keys, got %d", count)
	}
}

// testLastGroup covers the records of the longest all 0xFF hash-key, whose group
// has no successor key
func testLastGroup(t *testing.T, factory StoreFactory) {
	s := factory(time.Now)

	hashKey := bytes.Repeat([]byte{0xFF}, key.MaxHashKeyLen-1)
	for _, sortKey := range []string{"a", "b"} {
		k, err := key.Encode(hashKey, []byte(sortKey))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		s.Put(k, []byte(sortKey), 0)
	}
	s.Put(mustKey(t, "h", "a"), []byte("other"), 0)

	count, status := s.SortKeyCount(hashKey)
	expectStatus(t, "count", status, store.StatusOK)
	if count != 2 {
		t.Errorf("Expected 2 sort keys in the last group, got %d", count)
	}

	kvs, status := s.MultiGet(hashKey, nil, 0, 0, false)
	expectStatus(t, "multi get", status, store.StatusOK)
	if len(kvs) != 2 || string(kvs[0].Key) != "a" || string(kvs[1].Key) != "b" {
		t.Errorf("Expected sort keys a and b in the last group, got %v", kvs)
	}
}

func testScan(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	for i := 0; i < 5; i++ {
		s.Put(mustKey(t, "h", fmt.Sprintf("%d", i)), []byte{byte('a' + i)}, 0)
	}
	s.Put(mustKey(t, "x", "0"), []byte("other"), 0)

	start := mustKey(t, "h", "1")
	stop := mustKey(t, "h", "3")

	cases := []struct {
		name           string
		startInclusive bool
		stopInclusive  bool
		want           []string
	}{
		{"[1,3)", true, false, []string{"1", "2"}},
		{"[1,3]", true, true, []string{"1", "2", "3"}},
		{"(1,3)", false, false, []string{"2"}},
		{"(1,3]", false, true, []string{"2", "3"}},
	}
	for _, tc := range cases {
		kvs, more, status := s.Scan(store.ScanRange{Start: start, StartInclusive: tc.startInclusive, Stop: stop, StopInclusive: tc.stopInclusive}, 0, false)
		expectStatus(t, tc.name, status, store.StatusOK)
		if more {
			t.Errorf("%s: unbounded scan should not report more", tc.name)
		}
		if len(kvs) != len(tc.want) {
			t.Errorf("%s: expected %d records, got %d", tc.name, len(tc.want), len(kvs))
			continue
		}
		for i, want := range tc.want {
			_, sortKey, err := key.Decode(kvs[i].Key)
			if err != nil || string(sortKey) != want {
				t.Errorf("%s: record %d expected sort key %s, got %q (%v)", tc.name, i, want, sortKey, err)
			}
		}
	}

	// paging through the whole table
	var (
		rng   = store.ScanRange{StartInclusive: true}
		total int
	)
	for {
		kvs, more, _ := s.Scan(rng, 2, true)
		total += len(kvs)
		for _, kv := range kvs {
			if kv.Value != nil {
				t.Errorf("Expected no value for %x", kv.Key)
			}
		}
		if !more {
			break
		}
		rng.Start = kvs[len(kvs)-1].Key
		rng.StartInclusive = false
	}
	if total != 6 {
		t.Errorf("Expected 6 records when paging, got %d", total)
	}
}

func testDecree(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	if s.Decree() != 0 {
		t.Errorf("Expected decree 0 of empty store, got %d", s.Decree())
	}

	d1, _ := s.Put(mustKey(t, "h", "a"), []byte("1"), 0)
	d2, _ := s.MultiPut([]byte("h"), []store.KeyValue{{Key: []byte("b")}}, 0)
	d3, _ := s.Remove(mustKey(t, "h", "a"))
	if !(d1 < d2 && d2 < d3) {
		t.Errorf("Expected increasing decrees, got %d %d %d", d1, d2, d3)
	}
	if s.Decree() != d3 {
		t.Errorf("Expected decree %d, got %d", d3, s.Decree())
	}

	// reads do not advance the decree
	s.Get(mustKey(t, "h", "b"))
	if s.Decree() != d3 {
		t.Errorf("Read advanced the decree to %d", s.Decree())
	}
}

func testConcurrency(t *testing.T, factory StoreFactory) {
	s := factory(newFakeClock().Now)

	const (
		workers = 8
		perWork = 200
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			hashKey := fmt.Sprintf("worker-%d", w)
			for i := 0; i < perWork; i++ {
				k := mustKey(t, hashKey, fmt.Sprintf("%04d", i))
				s.Put(k, []byte("v"), 0)
				s.Get(k)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		count, _ := s.SortKeyCount([]byte(fmt.Sprintf("worker-%d", w)))
		if count != perWork {
			t.Errorf("worker %d: expected %d records, got %d", w, perWork, count)
		}
	}
	if s.Decree() != workers*perWork {
		t.Errorf("Expected decree %d, got %d", workers*perWork, s.Decree())
	}
}
