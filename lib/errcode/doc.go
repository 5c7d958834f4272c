// Package errcode defines the error taxonomy surfaced to clients of the sorted
// key-value store and the translator that normalizes the failure domains below it.
//
// A request can fail on two levels. The transport reports a TransportStatus
// (timeouts, network failures, stale partition membership, ...). If the transport
// succeeded, the storage engine reports its own numeric status in the response.
// Both are folded into one Code:
//
//   - transport statuses map one to one onto client codes,
//   - non-zero storage statuses are moved into a reserved negative sub-range
//     (StorageErrorStart - status) so they can never collide with transport codes,
//   - everything else becomes Unknown and is logged with its raw value.
//
// The Translator is built once (NewTranslator) and is read-only afterwards, so it
// can be shared by any number of goroutines without locking.
//
// Error wraps a Code into a Go error. CodeOf recovers the code from any error
// returned by the client.
package errcode
