package errcode

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("errcode")

// Translator maps the (transport, storage) status pair of a finished request onto a
// client Code. All tables are filled by NewTranslator and never written again.
type Translator struct {
	transport map[TransportStatus]Code
	storage   map[int32]Code
	messages  map[Code]string
}

// NewTranslator builds the lookup tables of a translator.
func NewTranslator() *Translator {
	t := &Translator{
		transport: map[TransportStatus]Code{
			TransportOK:                  Ok,
			TransportTimeout:             Timeout,
			TransportNetworkFailure:      NetworkFailure,
			TransportHandlerNotFound:     HandlerNotFound,
			TransportAppNotExist:         AppNotExist,
			TransportAppExist:            AppExist,
			TransportObjectNotFound:      ObjectNotFound,
			TransportFileOperationFailed: ServerInternalError,
			TransportInvalidState:        ServerChanged,
		},
		storage: make(map[int32]Code, MaxStorageStatus),
		messages: map[Code]string{
			Ok:                  "ok",
			Unknown:             "unknown error",
			Timeout:             "request timed out",
			ObjectNotFound:      "object not found",
			NetworkFailure:      "network failure",
			HandlerNotFound:     "handler not found",
			AppNotExist:         "app does not exist",
			AppExist:            "app already exists",
			ServerInternalError: "server internal error",
			ServerChanged:       "server changed, partition membership is stale",
			InvalidHashKey:      "invalid hash key",
			InvalidValue:        "invalid value",
			InvalidSplitCount:   "invalid split count",
		},
	}

	for status := int32(1); status <= MaxStorageStatus; status++ {
		code := StorageErrorStart - Code(status)
		t.storage[status] = code
		t.messages[code] = fmt.Sprintf("storage error: %s", code)
	}

	return t
}

// ToClientError translates the status pair of a finished request.
// The storage status is only consulted if the transport succeeded.
func (t *Translator) ToClientError(transportStatus TransportStatus, storageStatus int32) Code {
	if transportStatus != TransportOK {
		return t.FromTransport(transportStatus)
	}
	if storageStatus == 0 {
		return Ok
	}
	if code, ok := t.storage[storageStatus]; ok {
		return code
	}
	Logger.Errorf("no client error defined for storage status %d", storageStatus)
	return Unknown
}

// FromTransport translates a transport status on its own
func (t *Translator) FromTransport(status TransportStatus) Code {
	if code, ok := t.transport[status]; ok {
		return code
	}
	Logger.Errorf("no client error defined for transport status [%d:%s]", int32(status), status)
	return Unknown
}

// ErrorString returns the message of a client code
func (t *Translator) ErrorString(code Code) string {
	if msg, ok := t.messages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown client error %d", int32(code))
}
