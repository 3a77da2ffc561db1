package protocol

import "encoding/binary"

// ByteOrder is the byte ordering the slave uses for multi-byte values inside
// packets. It is negotiated once per connection from the CONNECT response.
type ByteOrder uint8

const (
	// LittleEndian is the Intel byte ordering.
	LittleEndian ByteOrder = iota

	// BigEndian is the Motorola byte ordering.
	BigEndian
)

// commModeByteOrder is the bit in the COMM_MODE_BASIC byte of the CONNECT
// response that is set for Motorola slaves.
const commModeByteOrder = 0x01

func byteOrderFromCommMode(commMode byte) ByteOrder {
	if commMode&commModeByteOrder == 0 {
		return LittleEndian
	}

	return BigEndian
}

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "motorola"
	}

	return "intel"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// Encode32 lays out value as four bytes in the requested order.
func Encode32(value uint32, order ByteOrder) [4]byte {
	var b [4]byte
	order.binary().PutUint32(b[:], value)
	return b
}

// Decode32 reads a 32-bit value from the first four bytes of b. It panics if
// b is shorter than that, callers validate packet lengths first.
func Decode32(b []byte, order ByteOrder) uint32 {
	return order.binary().Uint32(b)
}

func Encode16(value uint16, order ByteOrder) [2]byte {
	var b [2]byte
	order.binary().PutUint16(b[:], value)
	return b
}

func Decode16(b []byte, order ByteOrder) uint16 {
	return order.binary().Uint16(b)
}

func (o ByteOrder) PutUint32(b []byte, v uint32) {
	o.binary().PutUint32(b, v)
}

func (o ByteOrder) Uint32(b []byte) uint32 {
	return o.binary().Uint32(b)
}

func (o ByteOrder) PutUint16(b []byte, v uint16) {
	o.binary().PutUint16(b, v)
}

func (o ByteOrder) Uint16(b []byte) uint16 {
	return o.binary().Uint16(b)
}
