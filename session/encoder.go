package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const sessionFormatVersion = 1

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session blob corrupt")

// Encode serializes s as:
//
//	[version:1][uidLen:2][uid][descLen:2][desc][createdAtMs:8][expiresAtMs:8]
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) == 0 || len(s.UserID) > math.MaxUint16 {
		return nil, errors.New("invalid userID length")
	}
	desc := s.ClientDescriptor
	if len(desc) > math.MaxUint16 {
		desc = desc[:math.MaxUint16]
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + len(s.UserID) + 2 + len(desc) + 16)

	buf.WriteByte(sessionFormatVersion)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(s.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(desc))); err != nil {
		return nil, err
	}
	buf.WriteString(desc)
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	buf.Write(encodeExpiry(s.ExpiresAt))

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode. SessionID is not part of the blob.
func Decode(data []byte) (*Session, error) {
	if len(data) < 1+2+2+16 || data[0] != sessionFormatVersion {
		return nil, ErrCorrupt
	}
	idx := 1

	uidLen := int(binary.BigEndian.Uint16(data[idx:]))
	idx += 2
	if uidLen == 0 || len(data) < idx+uidLen+2+16 {
		return nil, ErrCorrupt
	}
	uid := string(data[idx : idx+uidLen])
	idx += uidLen

	descLen := int(binary.BigEndian.Uint16(data[idx:]))
	idx += 2
	if len(data) != idx+descLen+16 {
		return nil, ErrCorrupt
	}
	desc := string(data[idx : idx+descLen])
	idx += descLen

	created := int64(binary.BigEndian.Uint64(data[idx:]))
	expires := int64(binary.BigEndian.Uint64(data[idx+8:]))

	return &Session{
		UserID:           uid,
		ClientDescriptor: desc,
		CreatedAt:        time.UnixMilli(created),
		ExpiresAt:        time.UnixMilli(expires),
	}, nil
}

func encodeExpiry(t time.Time) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(t.UnixMilli()))
	return out
}
