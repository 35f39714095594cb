// Package convid encodes a (contact, source file) pair as one opaque,
// URL-safe conversation identifier.
//
// The pair is serialized as two length-prefixed fields before base64, so the
// identifier round-trips any UTF-8 names — including names that contain a
// delimiter an ad hoc join scheme would trip over.
package convid

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedID reports an identifier that cannot be decoded. Callers treat
// the conversation as not found.
var ErrMalformedID = errors.New("malformed conversation id")

// Encode returns the opaque identifier for a (contact, source file) pair.
func Encode(contact, sourceFile string) string {
	buf := make([]byte, 0, len(contact)+len(sourceFile)+2*binary.MaxVarintLen64)
	buf = appendField(buf, contact)
	buf = appendField(buf, sourceFile)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func appendField(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// Decode recovers the (contact, source file) pair from an identifier
// produced by Encode. Trailing garbage, truncated fields, and invalid base64
// all yield ErrMalformedID; fields are never silently truncated.
func Decode(id string) (contact, sourceFile string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedID, err)
	}

	contact, rest, err := readField(raw)
	if err != nil {
		return "", "", err
	}
	sourceFile, rest, err = readField(rest)
	if err != nil {
		return "", "", err
	}
	if len(rest) != 0 {
		return "", "", fmt.Errorf("%w: %d trailing bytes", ErrMalformedID, len(rest))
	}
	return contact, sourceFile, nil
}

func readField(buf []byte) (string, []byte, error) {
	n, width := binary.Uvarint(buf)
	if width <= 0 {
		return "", nil, fmt.Errorf("%w: bad length prefix", ErrMalformedID)
	}
	buf = buf[width:]
	if uint64(len(buf)) < n {
		return "", nil, fmt.Errorf("%w: field truncated", ErrMalformedID)
	}
	return string(buf[:n]), buf[n:], nil
}
