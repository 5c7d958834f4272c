package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/cockroachdb/errors"
)

// NewGOBSerializer creates a serializer using Go's gob format. Every message
// carries its own type description, which makes gob the slowest of the three.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, errors.Wrapf(err, "gob: encode %s", msg.MsgType)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob keeps fields of msg that are absent in b
	*msg = common.Message{}
	return errors.Wrap(gob.NewDecoder(bytes.NewReader(b)).Decode(msg), "gob: decode")
}
