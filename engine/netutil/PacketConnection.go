package netutil

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/pkg/errors"
)

const (
	_SIZE_FIELD_SIZE             = 4
	_PAYLOAD_LEN_MASK            = 0x7FFFFFFF
	_PAYLOAD_COMPRESSED_BIT_MASK = 0x80000000
)

var (
	packetEndian = binary.LittleEndian

	// ErrPayloadTooLarge is returned when a packet payload exceeds MAX_PAYLOAD_LENGTH
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidPayload is returned when a compressed payload can not be decoded.
	// The connection is still usable after it.
	ErrInvalidPayload = errors.New("invalid payload")
)

// EncodePacket prepends the packet header to payload, compressing it with snappy if compress is set
// and the payload is large enough
func EncodePacket(payload []byte, compress bool) ([]byte, error) {
	header := uint32(len(payload))
	if compress && len(payload) >= consts.PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD {
		compressed := snappy.Encode(nil, payload)
		if len(compressed) < len(payload) {
			payload = compressed
			header = uint32(len(payload)) | _PAYLOAD_COMPRESSED_BIT_MASK
		}
	}
	if len(payload) > consts.MAX_PAYLOAD_LENGTH {
		return nil, ErrPayloadTooLarge
	}

	data := make([]byte, _SIZE_FIELD_SIZE+len(payload))
	packetEndian.PutUint32(data, header)
	copy(data[_SIZE_FIELD_SIZE:], payload)
	return data, nil
}

// ReadPacket reads one packet from r and returns its (decompressed) payload
func ReadPacket(r io.Reader) ([]byte, error) {
	var header [_SIZE_FIELD_SIZE]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	h := packetEndian.Uint32(header[:])
	payloadLen := h & _PAYLOAD_LEN_MASK
	if payloadLen > consts.MAX_PAYLOAD_LENGTH {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "payload length %d", payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if h&_PAYLOAD_COMPRESSED_BIT_MASK != 0 {
		decodedLen, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "decompress: %v", err)
		}
		if decodedLen > consts.MAX_PAYLOAD_LENGTH {
			return nil, errors.Wrapf(ErrPayloadTooLarge, "decompressed length %d", decodedLen)
		}
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "decompress: %v", err)
		}
		payload = decoded
	}
	return payload, nil
}

// PacketConnection sends and receives packets upon a stream connection (TCP, KCP or websocket)
type PacketConnection struct {
	conn     net.Conn
	reader   *bufio.Reader
	compress bool

	sendLock  sync.Mutex
	bytesSent uint64
	bytesRecv uint64
}

// NewPacketConnection creates a packet connection based on network connection
func NewPacketConnection(conn net.Conn, compress bool) *PacketConnection {
	return &PacketConnection{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		compress: compress,
	}
}

// SendPacket writes the payload as a single packet
func (pc *PacketConnection) SendPacket(payload []byte) error {
	data, err := EncodePacket(payload, pc.compress)
	if err != nil {
		return err
	}

	pc.sendLock.Lock()
	defer pc.sendLock.Unlock()
	n, err := pc.conn.Write(data)
	atomic.AddUint64(&pc.bytesSent, uint64(n))
	return err
}

// RecvPacket blocks until the next packet arrives
func (pc *PacketConnection) RecvPacket() ([]byte, error) {
	payload, err := ReadPacket(pc.reader)
	if err == nil {
		atomic.AddUint64(&pc.bytesRecv, uint64(_SIZE_FIELD_SIZE+len(payload)))
	}
	return payload, err
}

// SetReadDeadline sets the deadline of the next RecvPacket
func (pc *PacketConnection) SetReadDeadline(t time.Time) error {
	return pc.conn.SetReadDeadline(t)
}

// BytesSent returns the number of bytes written to the connection
func (pc *PacketConnection) BytesSent() uint64 {
	return atomic.LoadUint64(&pc.bytesSent)
}

// BytesReceived returns the number of packet bytes read from the connection
func (pc *PacketConnection) BytesReceived() uint64 {
	return atomic.LoadUint64(&pc.bytesRecv)
}

// Close the connection
func (pc *PacketConnection) Close() error {
	return pc.conn.Close()
}

// RemoteAddr return the remote address
func (pc *PacketConnection) RemoteAddr() net.Addr {
	return pc.conn.RemoteAddr()
}

// LocalAddr returns the local address
func (pc *PacketConnection) LocalAddr() net.Addr {
	return pc.conn.LocalAddr()
}

func (pc *PacketConnection) String() string {
	return fmt.Sprintf("[%s >>> %s]", pc.LocalAddr(), pc.RemoteAddr())
}
