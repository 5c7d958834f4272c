package meta

import (
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("meta")

// QueryCallback receives the result of a partition count query.
// On failure partitionCount and appID are -1.
type QueryCallback func(partitionCount, appID int32, err error)

// IMetaResolver answers partition count queries for tables
type IMetaResolver interface {
	// QueryPartitionCount asks for the partition count of appName. It never blocks,
	// callback is invoked exactly once, at the latest after timeout.
	QueryPartitionCount(appName string, timeout time.Duration, callback QueryCallback)

	// Close releases all resources of the resolver
	Close() error
}
