package netutil

import (
	"strconv"
	"testing"

	"github.com/bmizerany/assert"
)

type testMsg struct {
	ID        string                 `json:"id" msgpack:"id"`
	F1        float64                `json:"f1" msgpack:"f1"`
	F2        int                    `json:"f2" msgpack:"f2"`
	ListField []interface{}          `json:"list" msgpack:"list"`
	MapField  map[string]interface{} `json:"map" msgpack:"map"`
}

func newTestMsg() testMsg {
	msg := testMsg{
		ID:        "abc",
		F1:        0.123124234,
		F2:        42,
		ListField: []interface{}{1, 2, 3, "abc", "def"},
		MapField:  map[string]interface{}{},
	}
	for i := 0; i < 100; i++ {
		msg.MapField["key"+strconv.Itoa(i)] = "val" + strconv.Itoa(i)
	}
	return msg
}

func BenchmarkMessagePackMsgPacker(b *testing.B) {
	benchmarkMsgPacker(b, &MessagePackMsgPacker{})
}

func BenchmarkJSONMsgPacker(b *testing.B) {
	benchmarkMsgPacker(b, &JSONMsgPacker{})
}

func benchmarkMsgPacker(b *testing.B, packer MsgPacker) {
	msg := newTestMsg()
	var totalSize int64
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 0, 100)
		buf, _ = packer.PackMsg(msg, buf)
		totalSize += int64(len(buf))

		var restoreMsg map[string]interface{}
		_ = packer.UnpackMsg(buf, &restoreMsg)
	}
	b.Logf("%T average size: %d", packer, totalSize/int64(b.N))
}

func TestMessagePackMsgPacker_UnpackMsg(t *testing.T) {
	msg := map[string]interface{}{
		"a": 1,
		"b": 2,
		"c": map[string]interface{}{
			"d": 1,
		},
	}
	buf := make([]byte, 0)
	buf, err := MessagePackMsgPacker{}.PackMsg(msg, buf)
	if err != nil {
		t.Error(err)
	}
	var outmsg map[string]interface{}
	if err := (MessagePackMsgPacker{}).UnpackMsg(buf, &outmsg); err != nil {
		t.Fatal(err)
	}
	if _, ok := outmsg["c"].(map[interface{}]interface{}); ok {
		t.Errorf("should not unpack with type map[interface{}]interface{}")
	}
}

func TestMsgPackers(t *testing.T) {
	for _, format := range []string{"json", "msgpack"} {
		packer, err := NewMsgPacker(format)
		if err != nil {
			t.Fatal(err)
		}
		msg := newTestMsg()
		buf, err := packer.PackMsg(msg, nil)
		if err != nil {
			t.Fatal(err)
		}
		var out testMsg
		if err := packer.UnpackMsg(buf, &out); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, msg.ID, out.ID)
		assert.Equal(t, msg.F1, out.F1)
		assert.Equal(t, msg.F2, out.F2)
		assert.Equal(t, len(msg.MapField), len(out.MapField))
	}

	_, err := NewMsgPacker("xml")
	assert.T(t, err != nil, "xml packer should not exist")
}
