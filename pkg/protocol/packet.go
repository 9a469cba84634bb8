package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/netip"

	"github.com/rs/zerolog/log"
)

// MaxPacketSize is the maximum datagram size, sent and received.
const MaxPacketSize = 512

var ErrInvalidPacket = errors.New("invalid packet data")

var (
	challengeResponseHeader = []byte("\xff\xff\xff\xffs\n")
	serverListHeader        = []byte("\xff\xff\xff\xfff\n")
	sourceQueryPrefix       = []byte("\xff\xff\xff\xffSource Engine Query")
)

// Packet is an inbound datagram recognized by the master.
type Packet interface {
	packet()
}

// Challenge is a game server requesting a registration nonce. Nonce is the
// client's own nonce to echo back, if it supplied one.
type Challenge struct {
	Nonce *uint32
}

// ServerAdd is a registration (or re-registration) attempt. Challenge is the
// echoed master nonce, if present in the info string.
type ServerAdd struct {
	Challenge *uint32
	Info      ServerInfo
}

// ServerRemove is a deregistration request. It is a documented no-op.
type ServerRemove struct{}

// QueryServers is a browser asking for the server list. RawFilter is the
// undecoded filter info string.
type QueryServers struct {
	Region    Region
	RawFilter []byte
}

// SourceQuery is the 25-byte "Source Engine Query" info probe.
type SourceQuery struct{}

func (Challenge) packet()    {}
func (ServerAdd) packet()    {}
func (ServerRemove) packet() {}
func (QueryServers) packet() {}
func (SourceQuery) packet()  {}

// DecodePacket identifies an inbound datagram by its byte prefix. The whole
// received buffer is matched; trailing garbage makes a packet invalid except
// after a registration info string, where it is tolerated.
func DecodePacket(data []byte) (Packet, error) {
	switch {
	case len(data) >= 2 && data[0] == '1':
		region, err := ParseRegion(data[1])
		if err != nil {
			return nil, ErrInvalidPacket
		}
		// The first string historically carries the sender's last-seen
		// address for pagination; it is ignored.
		_, tail, ok := cutNul(data[2:])
		if !ok {
			return nil, ErrInvalidPacket
		}
		filter, tail, ok := cutNul(tail)
		if !ok || len(tail) != 0 {
			return nil, ErrInvalidPacket
		}
		return QueryServers{Region: region, RawFilter: filter}, nil

	case len(data) == 6 && data[0] == 'q' && data[1] == 0xff:
		nonce := binary.LittleEndian.Uint32(data[2:])
		return Challenge{Nonce: &nonce}, nil

	case len(data) >= 2 && data[0] == '0' && data[1] == '\n':
		challenge, info, tail, err := DecodeServerInfo(data[2:])
		if err != nil {
			return nil, ErrInvalidPacket
		}
		if len(tail) != 0 {
			log.Debug().Str("tail", string(tail)).Msg("unexpected data after server info")
		}
		return ServerAdd{Challenge: challenge, Info: info}, nil

	case len(data) == 2 && data[0] == 'b' && data[1] == '\n':
		return ServerRemove{}, nil

	case len(data) == 1 && data[0] == 'q':
		return Challenge{}, nil

	case len(data) == len(sourceQueryPrefix)+2 && bytes.HasPrefix(data, sourceQueryPrefix):
		return SourceQuery{}, nil
	}
	return nil, ErrInvalidPacket
}

func cutNul(data []byte) (head, tail []byte, ok bool) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return nil, nil, false
	}
	return data[:i], data[i+1:], true
}

// AppendChallengeResponse appends the master's reply to a challenge request:
// the header, the master nonce little-endian, and the echoed client nonce
// when one was supplied.
func AppendChallengeResponse(dst []byte, nonce uint32, echo *uint32) []byte {
	dst = append(dst, challengeResponseHeader...)
	dst = binary.LittleEndian.AppendUint32(dst, nonce)
	if echo != nil {
		dst = binary.LittleEndian.AppendUint32(dst, *echo)
	}
	return dst
}

// ServerListWriter streams (IPv4, port) tuples into server list datagrams,
// fragmenting across the datagram MTU. Every datagram starts with the list
// header and ends with a six-zero-byte terminator; a new datagram is started
// whenever the current one passes 500 bytes. Close always sends the pending
// datagram, so a query with no matches still gets an empty list and a query
// exhausted exactly at a fragment boundary gets a trailing empty list.
type ServerListWriter struct {
	send func(p []byte) error
	buf  []byte
}

func NewServerListWriter(send func(p []byte) error) *ServerListWriter {
	w := &ServerListWriter{
		send: send,
		buf:  make([]byte, 0, MaxPacketSize),
	}
	w.buf = append(w.buf, serverListHeader...)
	return w
}

// Add appends one server address, in network byte order.
func (w *ServerListWriter) Add(addr netip.AddrPort) error {
	ip := addr.Addr().As4()
	w.buf = append(w.buf, ip[:]...)
	w.buf = binary.BigEndian.AppendUint16(w.buf, addr.Port())
	if len(w.buf) > MaxPacketSize-12 {
		return w.flush()
	}
	return nil
}

// Close terminates and sends the pending datagram.
func (w *ServerListWriter) Close() error {
	return w.flush()
}

func (w *ServerListWriter) flush() error {
	w.buf = append(w.buf, 0, 0, 0, 0, 0, 0)
	err := w.send(w.buf)
	w.buf = append(w.buf[:0], serverListHeader...)
	return err
}
