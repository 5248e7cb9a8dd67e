package wire

import "encoding/binary"

// CaretHeaderSize is the fixed on-wire size of a Caret header.
//
// Layout (little-endian, distinct from Umbrella's big-endian layout so the
// two binary framings can never be confused by byte order alone):
//
//	offset  0   magic byte (CaretMagicByte)
//	offset  1   flags byte, bit 0 = reply flag
//	offset  2   reserved (2 bytes)
//	offset  4   request_id   (uint64)
//	offset 12   type_id      (uint32)
//	offset 16   header_size  (uint32)
//	offset 20   body_size    (uint32)
//
// As with Umbrella, the exact byte layout is not fixed by the distilled
// spec (Open Question (b)); this one is self-consistent and round-trips
// through EncodeCaretHeader / ParseCaretHeader.
const CaretHeaderSize = 24

const caretReplyFlagBit = 0x01

// ParseCaretHeader decodes a Caret header from the front of data. It is a
// pure function: it never mutates data and never allocates.
func ParseCaretHeader(data []byte) (FrameDescriptor, ParseStatus) {
	if len(data) < CaretHeaderSize {
		return FrameDescriptor{}, StatusNotEnoughData
	}
	if data[0] != CaretMagicByte {
		return FrameDescriptor{}, StatusMalformed
	}
	fd := FrameDescriptor{
		ReplyFlag:  data[1]&caretReplyFlagBit != 0,
		RequestID:  binary.LittleEndian.Uint64(data[4:12]),
		TypeID:     binary.LittleEndian.Uint32(data[12:16]),
		HeaderSize: binary.LittleEndian.Uint32(data[16:20]),
		BodySize:   binary.LittleEndian.Uint32(data[20:24]),
	}
	if fd.HeaderSize < CaretHeaderSize {
		return FrameDescriptor{}, StatusMalformed
	}
	if fd.Size() > MaxFrameSize || fd.Size() < 0 {
		return FrameDescriptor{}, StatusMalformed
	}
	return fd, StatusOK
}

// EncodeCaretHeader serializes fd into a fresh CaretHeaderSize-byte
// header. If fd.HeaderSize is zero, CaretHeaderSize is used.
func EncodeCaretHeader(fd FrameDescriptor) []byte {
	hs := fd.HeaderSize
	if hs == 0 {
		hs = CaretHeaderSize
	}
	buf := make([]byte, CaretHeaderSize)
	buf[0] = CaretMagicByte
	if fd.ReplyFlag {
		buf[1] = caretReplyFlagBit
	}
	binary.LittleEndian.PutUint64(buf[4:12], fd.RequestID)
	binary.LittleEndian.PutUint32(buf[12:16], fd.TypeID)
	binary.LittleEndian.PutUint32(buf[16:20], hs)
	binary.LittleEndian.PutUint32(buf[20:24], fd.BodySize)
	return buf
}
