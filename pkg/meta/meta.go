// Package meta serialises and parses the metadata payload carried by
// symbol id 0: filename, MIME type, file size, digest, source-block
// count, and an encoding-mode byte.
package meta

import (
	"encoding/binary"
	"errors"
)

// Mode identifies how the payload that follows the metadata symbol is
// coded. This repository implements exactly one mode; an unrecognised
// value is recorded but never rejected, so a future encoder can add modes
// without breaking old decoders.
type Mode uint8

// ModeRaptorLite is the only mode this repository emits.
const ModeRaptorLite Mode = 0

// DigestSize is the width of the SHA-256 digest field.
const DigestSize = 32

// maxStringLen is the truncation bound for filename and MIME strings.
const maxStringLen = 255

// ErrParse is returned when a metadata payload's declared lengths
// overflow the buffer it was read from.
var ErrParse = errors.New("meta: malformed metadata payload")

// Metadata describes the file being transferred.
type Metadata struct {
	Filename string
	MIME     string
	FileSize uint32
	Digest   [DigestSize]byte
	K        uint32
	Mode     Mode
}

// Encode serialises m into a length-prefixed byte string. Filename and
// MIME are truncated to 255 bytes.
func Encode(m Metadata) []byte {
	filename := truncate(m.Filename)
	mime := truncate(m.MIME)

	buf := make([]byte, 0, 1+len(filename)+1+len(mime)+4+DigestSize+4+1)
	buf = append(buf, byte(len(filename)))
	buf = append(buf, filename...)
	buf = append(buf, byte(len(mime)))
	buf = append(buf, mime...)
	buf = binary.BigEndian.AppendUint32(buf, m.FileSize)
	buf = append(buf, m.Digest[:]...)
	buf = binary.BigEndian.AppendUint32(buf, m.K)
	buf = append(buf, byte(m.Mode))
	return buf
}

// Parse reads a Metadata from buf. Trailing zero-padding (e.g. up to the
// encoder's block size B) is ignored. mode defaults to ModeRaptorLite if
// the buffer ends before that byte, for backward compatibility with an
// encoder that never wrote it.
func Parse(buf []byte) (Metadata, error) {
	var m Metadata
	off := 0

	filename, off2, err := readString(buf, off)
	if err != nil {
		return Metadata{}, err
	}
	off = off2
	m.Filename = filename

	mime, off3, err := readString(buf, off)
	if err != nil {
		return Metadata{}, err
	}
	off = off3
	m.MIME = mime

	if off+4 > len(buf) {
		return Metadata{}, ErrParse
	}
	m.FileSize = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4

	if off+DigestSize > len(buf) {
		return Metadata{}, ErrParse
	}
	copy(m.Digest[:], buf[off:off+DigestSize])
	off += DigestSize

	if off+4 > len(buf) {
		return Metadata{}, ErrParse
	}
	m.K = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4

	if off < len(buf) {
		m.Mode = Mode(buf[off])
	} else {
		m.Mode = ModeRaptorLite
	}

	return m, nil
}

func readString(buf []byte, off int) (string, int, error) {
	if off >= len(buf) {
		return "", off, ErrParse
	}
	n := int(buf[off])
	off++
	if off+n > len(buf) {
		return "", off, ErrParse
	}
	return string(buf[off : off+n]), off + n, nil
}

func truncate(s string) string {
	b := []byte(s)
	if len(b) > maxStringLen {
		b = b[:maxStringLen]
	}
	return string(b)
}
