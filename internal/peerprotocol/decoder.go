package peerprotocol

import "encoding/binary"

// Decoder accumulates bytes read off a peer's TCP socket and hands back
// complete messages, one at a time, never blocking on a partial frame.
type Decoder struct {
	buf []byte
}

// Feed appends newly-read bytes to the decode buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next pops the next complete message from the buffer. It returns
// ErrFrameTruncated (not advancing the buffer) when fewer than 4+length
// bytes are available yet. An id outside the defined set yields an
// *UnknownMessageError after the malformed frame has already been
// skipped, so the caller can log it and keep decoding.
func (d *Decoder) Next() (Message, error) {
	if len(d.buf) < 4 {
		return nil, ErrFrameTruncated
	}
	length := binary.BigEndian.Uint32(d.buf[0:4])
	if length == 0 {
		d.buf = d.buf[4:]
		return KeepAliveMessage{}, nil
	}
	if uint32(len(d.buf)) < 4+length {
		return nil, ErrFrameTruncated
	}
	frame := d.buf[4 : 4+length]
	d.buf = d.buf[4+length:]

	id := MessageID(frame[0])
	payload := frame[1:]
	switch id {
	case Choke:
		return ChokeMessage{}, nil
	case Unchoke:
		return UnchokeMessage{}, nil
	case Interested:
		return InterestedMessage{}, nil
	case NotInterested:
		return NotInterestedMessage{}, nil
	case Have:
		if len(payload) != 4 {
			return nil, &UnknownMessageError{ID: id}
		}
		return HaveMessage{Index: binary.BigEndian.Uint32(payload)}, nil
	case Bitfield:
		data := make([]byte, len(payload))
		copy(data, payload)
		return BitfieldMessage{Data: data}, nil
	case Request:
		if len(payload) != 12 {
			return nil, &UnknownMessageError{ID: id}
		}
		return RequestMessage{
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil
	case Piece:
		if len(payload) < 8 {
			return nil, &UnknownMessageError{ID: id}
		}
		block := make([]byte, len(payload)-8)
		copy(block, payload[8:])
		return PieceMessage{
			Index: binary.BigEndian.Uint32(payload[0:4]),
			Begin: binary.BigEndian.Uint32(payload[4:8]),
			Block: block,
		}, nil
	case Cancel:
		if len(payload) != 12 {
			return nil, &UnknownMessageError{ID: id}
		}
		return CancelMessage{
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil
	case Port:
		if len(payload) != 2 {
			return nil, &UnknownMessageError{ID: id}
		}
		return PortMessage{Port: binary.BigEndian.Uint16(payload)}, nil
	default:
		return nil, &UnknownMessageError{ID: id}
	}
}
