package netutil

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

var (
	// MSG_PACKER is the default packer for network messages
	MSG_PACKER MsgPacker = JSONMsgPacker{}
)

// MsgPacker packs messages into payloads and unpacks them. PackMsg appends to buf.
type MsgPacker interface {
	PackMsg(msg interface{}, buf []byte) ([]byte, error)
	UnpackMsg(data []byte, msg interface{}) error
}

// NewMsgPacker returns the packer of the given format: json or msgpack
func NewMsgPacker(format string) (MsgPacker, error) {
	switch format {
	case "", "json":
		return JSONMsgPacker{}, nil
	case "msgpack":
		return MessagePackMsgPacker{}, nil
	}
	return nil, errors.Errorf("unknown msg packer: %s", format)
}

// JSONMsgPacker is the default wire format, readable by any client
type JSONMsgPacker struct{}

// PackMsg appends msg encoded as JSON to buf. Chat text is not HTML-escaped.
func (JSONMsgPacker) PackMsg(msg interface{}, buf []byte) ([]byte, error) {
	buffer := bytes.NewBuffer(buf)
	enc := json.NewEncoder(buffer)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return buf, errors.Wrap(err, "json pack")
	}
	packed := buffer.Bytes()
	return packed[:len(packed)-1], nil // Encode terminates with '\n'
}

// UnpackMsg decodes a JSON payload into msg
func (JSONMsgPacker) UnpackMsg(data []byte, msg interface{}) error {
	return errors.Wrap(json.Unmarshal(data, msg), "json unpack")
}

// MessagePackMsgPacker is the compact wire format, also used for stored blobs
type MessagePackMsgPacker struct{}

// PackMsg appends msg encoded as MessagePack to buf
func (MessagePackMsgPacker) PackMsg(msg interface{}, buf []byte) ([]byte, error) {
	buffer := bytes.NewBuffer(buf)
	if err := msgpack.NewEncoder(buffer).Encode(msg); err != nil {
		return buf, errors.Wrap(err, "msgpack pack")
	}
	return buffer.Bytes(), nil
}

// UnpackMsg decodes a MessagePack payload into msg. Nested maps decode as map[string]interface{}.
func (MessagePackMsgPacker) UnpackMsg(data []byte, msg interface{}) error {
	return errors.Wrap(msgpack.Unmarshal(data, msg), "msgpack unpack")
}
