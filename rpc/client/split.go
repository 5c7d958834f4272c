package client

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/errcode"
)

func (c *rpcClient) GetUnorderedScanners(maxSplitCount int, options ScanOptions) ([]IScanner, error) {
	scanners, _, err := wait(func(callback Callback[[]IScanner]) {
		c.GetUnorderedScannersAsync(maxSplitCount, options, func(scanners []IScanner, err error) {
			callback(scanners, failedInfo, err)
		})
	})
	return scanners, err
}

func (c *rpcClient) GetUnorderedScannersAsync(maxSplitCount int, options ScanOptions, callback func([]IScanner, error)) {
	const op = "get_unordered_scanners"
	if callback == nil {
		return
	}

	if maxSplitCount <= 0 {
		msg := fmt.Sprintf("max split count should be greater than 0, but is %d", maxSplitCount)
		Logger.Errorf("%s: %s", op, msg)
		recordCall(op, errcode.InvalidSplitCount, 0)
		callback(nil, errcode.NewError(errcode.InvalidSplitCount, msg))
		return
	}

	// only these options are carried over, the rest keeps the defaults
	o := DefaultScanOptions()
	o.Timeout = options.Timeout
	o.BatchSize = options.BatchSize
	o.Snapshot = options.Snapshot
	o = o.normalize(c)

	id, ok := c.track(op)
	if !ok {
		recordCall(op, errcode.NetworkFailure, 0)
		callback(nil, c.clientError(errcode.NetworkFailure, "client is closed"))
		return
	}

	start := c.now()
	c.resolver.QueryPartitionCount(c.appName, o.Timeout, func(partitionCount, _ int32, err error) {
		defer c.untrack(id)

		if err != nil {
			code := c.translator.FromTransport(errcode.TransportStatusOf(err))
			recordCall(op, code, c.now().Sub(start))
			callback(nil, c.clientError(code, err.Error()))
			return
		}
		if partitionCount <= 0 {
			Logger.Errorf("%s: invalid partition count %d for table %s", op, partitionCount, c.appName)
			recordCall(op, errcode.Unknown, c.now().Sub(start))
			callback(nil, c.clientError(errcode.Unknown, fmt.Sprintf("invalid partition count %d", partitionCount)))
			return
		}

		groups := splitPartitions(int(partitionCount), maxSplitCount)
		scanners := make([]IScanner, len(groups))
		for i, group := range groups {
			scanners[i] = newScanner(c, group, o, nil, nil)
		}

		recordCall(op, errcode.Ok, c.now().Sub(start))
		callback(scanners, nil)
	})
}

// splitPartitions divides the partition indices [0, count) into min(maxSplit, count)
// contiguous, disjoint groups. The first count%split groups get one extra index.
// A partition index doubles as its partition hash since the replica routes by
// hash % count.
func splitPartitions(count, maxSplit int) [][]uint64 {
	split := min(maxSplit, count)
	size := count / split
	more := count % split

	groups := make([][]uint64, split)
	next := uint64(0)
	for i := range groups {
		n := size
		if i < more {
			n++
		}
		group := make([]uint64, n)
		for j := range group {
			group[j] = next
			next++
		}
		groups[i] = group
	}
	return groups
}
