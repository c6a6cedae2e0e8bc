package netutil

import (
	"bytes"
	"encoding/binary"
	"net"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/pkg/errors"
)

func TestEncodeReadPacket(t *testing.T) {
	for _, compress := range []bool{false, true} {
		for _, payload := range [][]byte{
			{},
			[]byte("ping"),
			[]byte(strings.Repeat("compressible ", 200)),
		} {
			data, err := EncodePacket(payload, compress)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ReadPacket(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			assert.Equal(t, string(payload), string(got))
		}
	}
}

func TestCompressedHeader(t *testing.T) {
	payload := []byte(strings.Repeat("a", consts.PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD*2))
	data, _ := EncodePacket(payload, true)
	h := packetEndian.Uint32(data)
	assert.T(t, h&_PAYLOAD_COMPRESSED_BIT_MASK != 0, "large payload should be compressed")
	assert.T(t, len(data) < len(payload), "compressed packet should be smaller")

	small, _ := EncodePacket([]byte("small"), true)
	assert.Equal(t, uint32(5), packetEndian.Uint32(small))
}

func TestReadPacketTooLarge(t *testing.T) {
	var header [4]byte
	packetEndian.PutUint32(header[:], consts.MAX_PAYLOAD_LENGTH+1)
	_, err := ReadPacket(bytes.NewReader(header[:]))
	assert.T(t, err != nil, "should reject large payloads")
}

func TestReadPacketCorrupt(t *testing.T) {
	payload := []byte("not snappy at all")
	data := make([]byte, 4+len(payload))
	packetEndian.PutUint32(data, uint32(len(payload))|_PAYLOAD_COMPRESSED_BIT_MASK)
	copy(data[4:], payload)
	data = append(data, data...)

	r := bytes.NewReader(data)
	_, err := ReadPacket(r)
	assert.Equal(t, ErrInvalidPayload, errors.Cause(err))
	_, err = ReadPacket(r)
	assert.Equal(t, ErrInvalidPayload, errors.Cause(err))
	assert.Equal(t, 0, r.Len())
}

func TestReadPacketDecompressedTooLarge(t *testing.T) {
	// snappy block header: uvarint decoded length (1 GiB) followed by a tiny literal
	payload := binary.AppendUvarint(nil, 1<<30)
	payload = append(payload, 0x00, 'x')
	data := make([]byte, 4+len(payload))
	packetEndian.PutUint32(data, uint32(len(payload))|_PAYLOAD_COMPRESSED_BIT_MASK)
	copy(data[4:], payload)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := ReadPacket(bytes.NewReader(data))
	runtime.ReadMemStats(&after)

	assert.Equal(t, ErrPayloadTooLarge, errors.Cause(err))
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > consts.MAX_PAYLOAD_LENGTH {
		t.Errorf("ReadPacket allocated %d bytes for a %d byte frame", allocated, len(data))
	}
}

func TestPacketConnection(t *testing.T) {
	c1, c2 := net.Pipe()
	pc1 := NewPacketConnection(c1, true)
	pc2 := NewPacketConnection(c2, true)
	defer pc1.Close()
	defer pc2.Close()

	msgs := []string{"hello", strings.Repeat("world", 300), "bye"}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, m := range msgs {
			if err := pc1.SendPacket([]byte(m)); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for _, m := range msgs {
		got, err := pc2.RecvPacket()
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, m, string(got))
	}
	wg.Wait()
	assert.T(t, pc1.BytesSent() > 0, "bytes sent should be counted")
	assert.T(t, pc2.BytesReceived() > 0, "bytes received should be counted")

	pc1.Close()
	_, err := pc2.RecvPacket()
	assert.T(t, IsConnectionError(err), "closed peer should be a connection error")
}
