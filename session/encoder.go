package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const sessionFormatVersionCurrent = 1

var errInvalidVersion = errors.New("invalid session version")

// Encode serializes s into the compact binary form stored in Redis:
// version, then length-prefixed account id, username and origin, then
// created/expires as big-endian unix nanoseconds.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeString(&buf, s.AccountID, "accountID"); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.Username, "username"); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.Origin, "origin"); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a payload produced by [Encode]. The returned session has an
// empty Token.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errInvalidVersion
	}

	s := &Session{}
	if s.AccountID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Username, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Origin, err = readString(reader); err != nil {
		return nil, err
	}

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	s.ExpiresAt = time.Unix(0, expiresAt).UTC()

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, value, field string) error {
	if len(value) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
