// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package message handles the mixed JSON/binary payload format used for
// audio transfers: a metadata header, optionally preceded by a 4-byte
// ASCII-hex length prefix, followed by a raw binary tail.
package message

import (
	"errors"
	"strconv"
)

// MaxHeaderSize bounds the JSON metadata header to keep parsing memory fixed.
const MaxHeaderSize = 1024

// PrefixLen is the size of the ASCII-hex length prefix.
const PrefixLen = 4

// Boundary parsing errors.
var (
	ErrTooShort        = errors.New("payload too short")
	ErrNoObject        = errors.New("payload does not start with a JSON object")
	ErrUnterminated    = errors.New("unterminated JSON object")
	ErrHeaderTooLarge  = errors.New("JSON header exceeds maximum size")
	ErrBadLengthPrefix = errors.New("invalid length prefix")
)

// PrefixedHeader decodes the 4-byte ASCII-hex length prefix at the start of
// buf and returns the JSON header length. The header itself must begin with
// '{' immediately after the prefix.
func PrefixedHeader(buf []byte) (int, error) {
	if len(buf) < PrefixLen {
		return 0, ErrTooShort
	}

	n, err := strconv.ParseUint(string(buf[:PrefixLen]), 16, 32)
	if err != nil {
		return 0, ErrBadLengthPrefix
	}
	if n > MaxHeaderSize {
		return 0, ErrHeaderTooLarge
	}
	if len(buf) < PrefixLen+int(n) {
		return 0, ErrTooShort
	}
	if n == 0 || buf[PrefixLen] != '{' {
		return 0, ErrNoObject
	}

	return int(n), nil
}

// BoundHeader returns the byte length, closing brace included, of the JSON
// object at the start of buf. It counts braces, treating content inside
// unescaped double quotes as opaque and honoring backslash escapes, so a
// binary tail containing '}' bytes cannot truncate the header. It never
// reads past buf.
func BoundHeader(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrTooShort
	}
	if buf[0] != '{' {
		return 0, ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false

	limit := len(buf)
	if limit > MaxHeaderSize {
		limit = MaxHeaderSize
	}

	for i := 0; i < limit; i++ {
		c := buf[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1, nil
				}
			}
		}
	}

	if len(buf) > MaxHeaderSize {
		return 0, ErrHeaderTooLarge
	}
	return 0, ErrUnterminated
}

// Split separates a mixed payload into its JSON header and binary tail. The
// length-prefixed format is tried first; payloads that begin directly with
// '{' fall back to brace counting.
func Split(buf []byte) (header, tail []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, ErrTooShort
	}

	if buf[0] != '{' {
		n, err := PrefixedHeader(buf)
		if err != nil {
			return nil, nil, err
		}
		return buf[PrefixLen : PrefixLen+n], buf[PrefixLen+n:], nil
	}

	n, err := BoundHeader(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], buf[n:], nil
}
