// Package storetest provides a test suite shared by all store.IStore implementations.
//
// Usage:
//
//	func Test(t *testing.T) {
//	    storetest.RunIStoreTests(t, "MemStore", memstore.NewMemStoreWithClock)
//	}
//
// The factory receives the clock the store must use for expiry, which lets the suite move
// time forward without sleeping.
package storetest
