package wire

import "encoding/binary"

// UmbrellaHeaderSize is the fixed on-wire size of an Umbrella header.
//
// Layout (big-endian):
//
//	offset  0   magic byte (UmbrellaMagicByte)
//	offset  1   flags byte, bit 0 = reply flag
//	offset  2   reserved (2 bytes)
//	offset  4   header_size  (uint32)
//	offset  8   body_size    (uint32)
//	offset 12   type_id      (uint32)
//	offset 16   request_id   (uint64)
//
// The exact byte layout is an implementation detail not fixed by the
// distilled spec (Open Question (b) in the design notes); this one is
// self-consistent and round-trips through EncodeUmbrellaHeader /
// ParseUmbrellaHeader.
const UmbrellaHeaderSize = 24

const umbrellaReplyFlagBit = 0x01

// ParseUmbrellaHeader decodes an Umbrella header from the front of data.
// It is a pure function: it never mutates data and never allocates.
func ParseUmbrellaHeader(data []byte) (FrameDescriptor, ParseStatus) {
	if len(data) < UmbrellaHeaderSize {
		return FrameDescriptor{}, StatusNotEnoughData
	}
	if data[0] != UmbrellaMagicByte {
		return FrameDescriptor{}, StatusMalformed
	}
	fd := FrameDescriptor{
		ReplyFlag:  data[1]&umbrellaReplyFlagBit != 0,
		HeaderSize: binary.BigEndian.Uint32(data[4:8]),
		BodySize:   binary.BigEndian.Uint32(data[8:12]),
		TypeID:     binary.BigEndian.Uint32(data[12:16]),
		RequestID:  binary.BigEndian.Uint64(data[16:24]),
	}
	if fd.HeaderSize < UmbrellaHeaderSize {
		return FrameDescriptor{}, StatusMalformed
	}
	if fd.Size() > MaxFrameSize || fd.Size() < 0 {
		return FrameDescriptor{}, StatusMalformed
	}
	return fd, StatusOK
}

// EncodeUmbrellaHeader serializes fd into a fresh UmbrellaHeaderSize-byte
// header. If fd.HeaderSize is zero, UmbrellaHeaderSize is used.
func EncodeUmbrellaHeader(fd FrameDescriptor) []byte {
	hs := fd.HeaderSize
	if hs == 0 {
		hs = UmbrellaHeaderSize
	}
	buf := make([]byte, UmbrellaHeaderSize)
	buf[0] = UmbrellaMagicByte
	if fd.ReplyFlag {
		buf[1] = umbrellaReplyFlagBit
	}
	binary.BigEndian.PutUint32(buf[4:8], hs)
	binary.BigEndian.PutUint32(buf[8:12], fd.BodySize)
	binary.BigEndian.PutUint32(buf[12:16], fd.TypeID)
	binary.BigEndian.PutUint64(buf[16:24], fd.RequestID)
	return buf
}
