package errcode

import "fmt"

// --------------------------------------------------------------------------
// Client Error Codes
// --------------------------------------------------------------------------

// Code is a client error code. Ok is zero, every failure is negative.
type Code int32

const (
	Ok                  Code = 0
	Unknown             Code = -1
	Timeout             Code = -2
	ObjectNotFound      Code = -3
	NetworkFailure      Code = -4
	HandlerNotFound     Code = -5
	AppNotExist         Code = -6
	AppExist            Code = -7
	ServerInternalError Code = -8
	ServerChanged       Code = -9 // stale partition membership
	InvalidHashKey      Code = -10
	InvalidValue        Code = -11
	InvalidSplitCount   Code = -12
)

// StorageErrorStart is the base of the reserved storage-engine sub-range.
// A storage status k != 0 is reported as StorageErrorStart - k.
const StorageErrorStart Code = -1000

// Storage statuses known to the translator (1..MaxStorageStatus)
const MaxStorageStatus = 12

// Named codes of the reserved storage sub-range
const (
	NotFound           = StorageErrorStart - 1
	Corruption         = StorageErrorStart - 2
	NotSupported       = StorageErrorStart - 3
	InvalidArgument    = StorageErrorStart - 4
	IOError            = StorageErrorStart - 5
	MergeInProgress    = StorageErrorStart - 6
	Incomplete         = StorageErrorStart - 7
	ShutdownInProgress = StorageErrorStart - 8
	StorageTimedOut    = StorageErrorStart - 9
	Aborted            = StorageErrorStart - 10
	Busy               = StorageErrorStart - 11
	Expired            = StorageErrorStart - 12
)

// IsStorageError reports whether code belongs to the reserved storage sub-range
func IsStorageError(code Code) bool {
	return code < StorageErrorStart && code >= StorageErrorStart-MaxStorageStatus
}

// String returns the symbolic name of a code
func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case Unknown:
		return "Unknown"
	case Timeout:
		return "Timeout"
	case ObjectNotFound:
		return "ObjectNotFound"
	case NetworkFailure:
		return "NetworkFailure"
	case HandlerNotFound:
		return "HandlerNotFound"
	case AppNotExist:
		return "AppNotExist"
	case AppExist:
		return "AppExist"
	case ServerInternalError:
		return "ServerInternalError"
	case ServerChanged:
		return "ServerChanged"
	case InvalidHashKey:
		return "InvalidHashKey"
	case InvalidValue:
		return "InvalidValue"
	case InvalidSplitCount:
		return "InvalidSplitCount"
	case NotFound:
		return "NotFound"
	case Corruption:
		return "Corruption"
	case NotSupported:
		return "NotSupported"
	case InvalidArgument:
		return "InvalidArgument"
	case IOError:
		return "IOError"
	case MergeInProgress:
		return "MergeInProgress"
	case Incomplete:
		return "Incomplete"
	case ShutdownInProgress:
		return "ShutdownInProgress"
	case StorageTimedOut:
		return "StorageTimedOut"
	case Aborted:
		return "Aborted"
	case Busy:
		return "Busy"
	case Expired:
		return "Expired"
	default:
		return fmt.Sprintf("Code(%d)", int32(c))
	}
}

// --------------------------------------------------------------------------
// Transport Statuses
// --------------------------------------------------------------------------

// TransportStatus is the status reported by the transport layer (or by a replica
// on behalf of the transport, see common.MsgTError).
type TransportStatus int32

const (
	TransportOK                  TransportStatus = 0
	TransportTimeout             TransportStatus = 1
	TransportNetworkFailure      TransportStatus = 2
	TransportHandlerNotFound     TransportStatus = 3
	TransportAppNotExist         TransportStatus = 4
	TransportAppExist            TransportStatus = 5
	TransportObjectNotFound      TransportStatus = 6
	TransportFileOperationFailed TransportStatus = 7
	TransportInvalidState        TransportStatus = 8

	// TransportUnclassified is used for errors that carry no status at all
	TransportUnclassified TransportStatus = -1
)

// String returns the symbolic name of a transport status
func (s TransportStatus) String() string {
	switch s {
	case TransportOK:
		return "ERR_OK"
	case TransportTimeout:
		return "ERR_TIMEOUT"
	case TransportNetworkFailure:
		return "ERR_NETWORK_FAILURE"
	case TransportHandlerNotFound:
		return "ERR_HANDLER_NOT_FOUND"
	case TransportAppNotExist:
		return "ERR_APP_NOT_EXIST"
	case TransportAppExist:
		return "ERR_APP_EXIST"
	case TransportObjectNotFound:
		return "ERR_OBJECT_NOT_FOUND"
	case TransportFileOperationFailed:
		return "ERR_FILE_OPERATION_FAILED"
	case TransportInvalidState:
		return "ERR_INVALID_STATE"
	case TransportUnclassified:
		return "ERR_UNCLASSIFIED"
	default:
		return fmt.Sprintf("ERR_%d", int32(s))
	}
}
