package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/cockroachdb/errors"
)

// NewJSONSerializer creates a serializer that encodes messages as json objects.
// Byte slices are base64 strings, a nil and an empty slice both decode as nil.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "json: encode %s", msg.MsgType)
	}
	return b, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return errors.New("json: empty message")
	}
	return errors.Wrap(json.Unmarshal(b, msg), "json: decode")
}
