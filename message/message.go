// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package message

// Message is a fully parsed audio payload. Data is nil when the binary
// tail was staged to a file out-of-band and must be fetched from there.
type Message struct {
	Metadata   Metadata
	HeaderSize int
	Data       []byte
}

// Staged reports whether the binary tail lives in a staged file instead of
// the in-memory payload.
func (m *Message) Staged() bool {
	return m.Data == nil
}

// Parse splits a raw payload into its metadata header and binary tail and
// decodes the metadata. A payload whose tail is empty while the metadata
// declares a non-zero size is accepted as a staged-file transfer; a tail
// shorter than the declared size is otherwise an error.
func Parse(payload []byte) (*Message, error) {
	header, tail, err := Split(payload)
	if err != nil {
		return nil, err
	}

	md, err := DecodeMetadata(header)
	if err != nil {
		return nil, err
	}

	msg := &Message{Metadata: md, HeaderSize: len(header)}

	if len(tail) < md.PayloadSize {
		if len(tail) == 0 {
			// Binary tail was streamed to a file ahead of dispatch.
			return msg, nil
		}
		return nil, ErrSizeMismatch
	}

	msg.Data = tail[:md.PayloadSize]
	return msg, nil
}

// ParseHeader decodes a JSON-only payload, as delivered for staged-file
// transfers where the binary tail never reaches memory.
func ParseHeader(header []byte) (*Message, error) {
	md, err := DecodeMetadata(header)
	if err != nil {
		return nil, err
	}
	return &Message{Metadata: md, HeaderSize: len(header)}, nil
}
