package client

import (
	"sort"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Split Scanners
// --------------------------------------------------------------------------

func TestSplitPartitionsProperties(t *testing.T) {
	for count := 1; count <= 40; count++ {
		for split := 1; split <= count+3; split++ {
			groups := splitPartitions(count, split)
			require.Len(t, groups, min(split, count))

			seen := make(map[uint64]bool)
			minSize, maxSize := count, 0
			for _, group := range groups {
				require.NotEmpty(t, group)
				minSize = min(minSize, len(group))
				maxSize = max(maxSize, len(group))
				for i, idx := range group {
					require.False(t, seen[idx], "index %d assigned twice", idx)
					seen[idx] = true
					if i > 0 {
						require.Equal(t, group[i-1]+1, idx, "groups must be contiguous")
					}
				}
			}
			require.Len(t, seen, count)
			for idx := range seen {
				require.Less(t, idx, uint64(count))
			}
			require.LessOrEqual(t, maxSize-minSize, 1)
		}
	}
}

func TestSplitTenPartitionsIntoFour(t *testing.T) {
	groups := splitPartitions(10, 4)

	var sizes []int
	for _, g := range groups {
		sizes = append(sizes, len(g))
	}
	assert.Equal(t, []int{3, 3, 2, 2}, sizes)
}

func TestGetUnorderedScanners(t *testing.T) {
	resolver := &fakeResolver{partitionCount: 10}
	c, ft := newTestClient(t, noRequests(t), resolver)

	scanners, err := c.GetUnorderedScanners(4, DefaultScanOptions())
	require.NoError(t, err)
	require.Len(t, scanners, 4)
	assert.Equal(t, int32(1), resolver.queries.Load())
	assert.Empty(t, ft.sent())

	var all []uint64
	var sizes []int
	for _, s := range scanners {
		sc := s.(*scanner)
		assert.Equal(t, Ready, sc.State())
		assert.Nil(t, sc.start)
		assert.Nil(t, sc.stop)
		sizes = append(sizes, len(sc.hashes))
		all = append(all, sc.hashes...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
	assert.ElementsMatch(t, []int{3, 3, 2, 2}, sizes)
}

func TestGetUnorderedScannersCopiesOnlySomeOptions(t *testing.T) {
	c, _ := newTestClient(t, noRequests(t), &fakeResolver{partitionCount: 2})

	scanners, err := c.GetUnorderedScanners(8, ScanOptions{
		Timeout:        123,
		BatchSize:      7,
		StartInclusive: false,
		StopInclusive:  true,
		NoValue:        true,
		Snapshot:       []byte("snap"),
	})
	require.NoError(t, err)
	require.Len(t, scanners, 2)

	o := scanners[0].(*scanner).options
	assert.Equal(t, ScanOptions{
		Timeout:        123,
		BatchSize:      7,
		StartInclusive: true,
		StopInclusive:  false,
		NoValue:        false,
		Snapshot:       []byte("snap"),
	}, o)
}

func TestGetUnorderedScannersInvalidSplitCount(t *testing.T) {
	resolver := &fakeResolver{partitionCount: 10}
	c, _ := newTestClient(t, noRequests(t), resolver)

	for _, split := range []int{0, -1} {
		scanners, err := c.GetUnorderedScanners(split, DefaultScanOptions())
		assert.Equal(t, errcode.InvalidSplitCount, errcode.CodeOf(err))
		assert.Empty(t, scanners)
	}
	assert.Equal(t, int32(0), resolver.queries.Load())
}

func TestGetUnorderedScannersMetaFailure(t *testing.T) {
	resolver := &fakeResolver{err: errcode.NewTransportError(errcode.TransportAppNotExist, errors.New("no such app"))}
	c, _ := newTestClient(t, noRequests(t), resolver)

	scanners, err := c.GetUnorderedScanners(4, DefaultScanOptions())
	assert.Equal(t, errcode.AppNotExist, errcode.CodeOf(err))
	assert.Empty(t, scanners)
	assert.Equal(t, 0, c.inFlightCount())
}

// --------------------------------------------------------------------------
// Range Scanner
// --------------------------------------------------------------------------

func TestRangeScannerEqualExclusiveBoundsIsEmpty(t *testing.T) {
	c, ft := newTestClient(t, noRequests(t), nil)

	o := DefaultScanOptions()
	o.StartInclusive = false
	o.StopInclusive = false
	s, err := c.GetScanner([]byte("h"), []byte("k"), []byte("k"), o)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, s.State())

	_, ok, err := s.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ft.sent())
}

func TestRangeScannerEqualInclusiveBoundsIsEligible(t *testing.T) {
	c, _ := newTestClient(t, noRequests(t), nil)

	o := DefaultScanOptions()
	o.StopInclusive = true
	s, err := c.GetScanner([]byte("h"), []byte("k"), []byte("k"), o)
	require.NoError(t, err)
	assert.Equal(t, Ready, s.State())
	assert.Len(t, s.(*scanner).hashes, 1)
}

func TestRangeScannerReversedBoundsIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, noRequests(t), nil)

	s, err := c.GetScanner([]byte("h"), []byte("z"), []byte("a"), DefaultScanOptions())
	require.NoError(t, err)
	_, ok, err := s.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeScannerDefaultStop(t *testing.T) {
	c, ft := newTestClient(t, func(_ uint64, req common.Message) (*common.Message, error) {
		return common.NewScanResponse(req.MsgType, 0, nil, common.ScanContextCompleted), nil
	}, nil)

	o := DefaultScanOptions()
	o.StopInclusive = true
	s, err := c.GetScanner([]byte("h"), []byte("a"), nil, o)
	require.NoError(t, err)

	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	reqs := ft.sent()
	require.Len(t, reqs, 1)
	start, _ := key.Encode([]byte("h"), []byte("a"))
	stop, _ := key.EncodeSuccessor([]byte("h"))
	assert.Equal(t, common.MsgTGetScanner, reqs[0].MsgType)
	assert.Equal(t, start, reqs[0].StartKey)
	assert.Equal(t, stop, reqs[0].StopKey)
	assert.True(t, reqs[0].StartInclusive)
	assert.False(t, reqs[0].StopInclusive)
	assert.Equal(t, int32(DefaultScanBatchSize), reqs[0].BatchSize)
	assert.Equal(t, key.PartitionHash(start), ft.hashes[0])
}

// batchHandler serves the records of kvs with the given batch size through scan contexts
func batchHandler(t *testing.T, kvs []common.KeyValue, batchSize int) handlerFunc {
	return func(_ uint64, req common.Message) (*common.Message, error) {
		var offset int
		switch req.MsgType {
		case common.MsgTGetScanner:
			offset = 0
		case common.MsgTScan:
			offset = int(req.ContextID)
		case common.MsgTClearScanner:
			return common.NewClearScannerResponse(), nil
		default:
			t.Errorf("unexpected request %s", req.MsgType)
		}

		end := min(offset+batchSize, len(kvs))
		contextID := int64(end)
		if end == len(kvs) {
			contextID = common.ScanContextCompleted
		}
		return common.NewScanResponse(req.MsgType, 0, kvs[offset:end], contextID), nil
	}
}

func scanRecords(t *testing.T, hashKey string, sortKeys ...string) []common.KeyValue {
	var kvs []common.KeyValue
	for _, sk := range sortKeys {
		k, err := key.Encode([]byte(hashKey), []byte(sk))
		require.NoError(t, err)
		kvs = append(kvs, common.KeyValue{Key: k, Value: []byte("v-" + sk)})
	}
	return kvs
}

func TestRangeScannerFollowsContexts(t *testing.T) {
	kvs := scanRecords(t, "h", "a", "b", "c", "d", "e")
	c, ft := newTestClient(t, batchHandler(t, kvs, 2), nil)

	s, err := c.GetScanner([]byte("h"), nil, nil, DefaultScanOptions())
	require.NoError(t, err)

	var got []string
	for {
		item, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, []byte("h"), item.HashKey)
		assert.Equal(t, "v-"+string(item.SortKey), string(item.Value))
		got = append(got, string(item.SortKey))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, Exhausted, s.State())

	reqs := ft.sent()
	require.Len(t, reqs, 3)
	assert.Equal(t, common.MsgTGetScanner, reqs[0].MsgType)
	assert.Equal(t, common.MsgTScan, reqs[1].MsgType)
	assert.Equal(t, int64(2), reqs[1].ContextID)
	assert.Equal(t, common.MsgTScan, reqs[2].MsgType)
}

func TestScannerCloseClearsContext(t *testing.T) {
	kvs := scanRecords(t, "h", "a", "b", "c")
	c, ft := newTestClient(t, batchHandler(t, kvs, 1), nil)

	s, err := c.GetScanner([]byte("h"), nil, nil, DefaultScanOptions())
	require.NoError(t, err)

	_, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)

	s.Close()
	assert.Equal(t, Exhausted, s.State())

	require.Eventually(t, func() bool { return c.inFlightCount() == 0 }, time.Second, time.Millisecond)
	reqs := ft.sent()
	require.Len(t, reqs, 2)
	assert.Equal(t, common.MsgTClearScanner, reqs[1].MsgType)
	assert.Equal(t, int64(1), reqs[1].ContextID)

	_, ok, err = s.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestScannerErrorIsSticky(t *testing.T) {
	c, ft := newTestClient(t, func(uint64, common.Message) (*common.Message, error) {
		return nil, errcode.NewTransportError(errcode.TransportTimeout, errors.New("timeout"))
	}, nil)

	s, err := c.GetScanner([]byte("h"), nil, nil, DefaultScanOptions())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok, err := s.Next()
		assert.False(t, ok)
		assert.Equal(t, errcode.Timeout, errcode.CodeOf(err))
	}
	assert.Equal(t, Exhausted, s.State())
	assert.Len(t, ft.sent(), 1)
}

func TestSplitScannerFailureIsLocal(t *testing.T) {
	c, _ := newTestClient(t, func(partitionHash uint64, req common.Message) (*common.Message, error) {
		if partitionHash == 0 {
			return common.NewScanResponse(req.MsgType, int32(5), nil, common.ScanContextCompleted), nil
		}
		kvs := scanRecords(t, "h", "x")
		return common.NewScanResponse(req.MsgType, 0, kvs, common.ScanContextCompleted), nil
	}, &fakeResolver{partitionCount: 2})

	scanners, err := c.GetUnorderedScanners(2, DefaultScanOptions())
	require.NoError(t, err)
	require.Len(t, scanners, 2)

	// the first scanner owns partition 0
	_, _, err = scanners[0].Next()
	assert.Equal(t, errcode.IOError, errcode.CodeOf(err))

	item, ok, err := scanners[1].Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), item.SortKey)
}

func TestScannerNextAsync(t *testing.T) {
	kvs := scanRecords(t, "h", "a")
	c, _ := newTestClient(t, batchHandler(t, kvs, 10), nil)

	s, err := c.GetScanner([]byte("h"), nil, nil, DefaultScanOptions())
	require.NoError(t, err)

	done := make(chan ScanItem, 1)
	s.NextAsync(func(item ScanItem, ok bool, err error) {
		assert.NoError(t, err)
		assert.True(t, ok)
		done <- item
	})
	assert.Equal(t, []byte("a"), (<-done).SortKey)
}

func TestGetScannerAsyncRunsInline(t *testing.T) {
	c, _ := newTestClient(t, noRequests(t), nil)

	var got IScanner
	c.GetScannerAsync([]byte("h"), nil, nil, DefaultScanOptions(), func(s IScanner, err error) {
		require.NoError(t, err)
		got = s
	})
	assert.NotNil(t, got)
}
