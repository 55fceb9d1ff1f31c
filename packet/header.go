package packet

import (
	"encoding/binary"

	"github.com/juju/errors"
)

const HeaderSize = 6

// MaxFrame bounds any serialized frame, binary or text.
const MaxFrame = 300

const (
	seqFlagsUnsegmented = 3
	seqMask             = 0x3fff
	apidMask            = 0x07ff
)

// Header is the 6 byte primary header.
// Version and secondary header flag are always zero on the wire.
type Header struct {
	Type   uint8  // 0 telemetry, 1 command
	APID   uint16 // 11 bits
	Seq    uint16 // low 14 bits of the kind sequence counter
	Length uint16 // body length - 1
}

func (self Header) BodyLen() int { return int(self.Length) + 1 }

func EncodeHeader(h Header, b []byte) {
	_ = b[HeaderSize-1]
	b[0] = (h.Type&1)<<4 | byte(h.APID>>8)&0x07
	b[1] = byte(h.APID)
	b[2] = seqFlagsUnsegmented<<6 | byte(h.Seq>>8)&0x3f
	b[3] = byte(h.Seq)
	binary.BigEndian.PutUint16(b[4:6], h.Length)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Annotatef(ErrFrameShort, "len=%d", len(b))
	}
	h := Header{
		Type:   (b[0] >> 4) & 1,
		APID:   (uint16(b[0])<<8 | uint16(b[1])) & apidMask,
		Seq:    (uint16(b[2])<<8 | uint16(b[3])) & seqMask,
		Length: binary.BigEndian.Uint16(b[4:6]),
	}
	if version := b[0] >> 5; version != 0 {
		return h, errors.NotValidf("header version=%d", version)
	}
	return h, nil
}

// EncodeBinary returns fresh header+body frame.
func EncodeBinary(seq uint16, p Packet) ([]byte, error) {
	body := p.MarshalBody()
	if len(body) == 0 {
		return nil, errors.Annotatef(ErrBodyLength, "kind=%s empty body", p.Kind())
	}
	if HeaderSize+len(body) > MaxFrame {
		return nil, errors.Annotatef(ErrFrameLength, "kind=%s body=%d", p.Kind(), len(body))
	}
	k := p.Kind()
	h := Header{Type: k.Type(), APID: k.APID(), Seq: seq & seqMask, Length: uint16(len(body) - 1)}
	frame := make([]byte, HeaderSize+len(body))
	EncodeHeader(h, frame)
	copy(frame[HeaderSize:], body)
	return frame, nil
}

func DecodeBinary(frame []byte) (Header, Packet, error) {
	h, err := DecodeHeader(frame)
	if err != nil {
		return h, nil, err
	}
	k, err := KindByAPID(h.APID)
	if err != nil {
		return h, nil, err
	}
	if h.Type != k.Type() {
		return h, nil, errors.NotValidf("kind=%s header type=%d", k, h.Type)
	}
	if len(frame) != HeaderSize+h.BodyLen() {
		return h, nil, errors.Annotatef(ErrFrameLength, "kind=%s header=%d actual=%d", k, h.BodyLen(), len(frame)-HeaderSize)
	}
	p := New(k)
	if err = p.UnmarshalBody(frame[HeaderSize:]); err != nil {
		return h, nil, errors.Annotatef(err, "kind=%s", k)
	}
	return h, p, nil
}
