// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/rapidreach/speakerlink/packets/codec"
)

// Publish represents the MQTT V3.1.1 PUBLISH packet.
type Publish struct {
	FixedHeader
	TopicName string
	ID        uint16 // Packet Identifier
	Payload   []byte
}

func (p *Publish) String() string {
	return fmt.Sprintf("%s\nTopic: %s\nPacketID: %d\nPayload: %d bytes\n", p.FixedHeader, p.TopicName, p.ID, len(p.Payload))
}

func (p *Publish) Type() byte {
	return PublishType
}

func (p *Publish) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeString(p.TopicName)...)
	if p.QoS > 0 {
		body = append(body, codec.EncodeUint16(p.ID)...)
	}
	body = append(body, p.Payload...)
	p.FixedHeader.RemainingLength = len(body)
	return append(p.FixedHeader.Encode(), body...)
}

func (p *Publish) Unpack(r io.Reader) error {
	if _, err := p.UnpackHead(r); err != nil {
		return err
	}
	var err error
	p.Payload, err = io.ReadAll(r)
	return err
}

// UnpackHead decodes the variable header only (topic name and, for QoS > 0,
// the packet identifier), leaving the payload bytes unread. It returns the
// number of bytes consumed so the caller knows how much of RemainingLength
// is still on the wire. The Protocol Engine relies on this to stream large
// payloads in bounded chunks instead of buffering them.
func (p *Publish) UnpackHead(r io.Reader) (int, error) {
	var err error
	p.TopicName, err = codec.DecodeString(r)
	if err != nil {
		return 0, err
	}
	consumed := 2 + len(p.TopicName)
	if p.QoS > 0 {
		p.ID, err = codec.DecodeUint16(r)
		if err != nil {
			return consumed, err
		}
		consumed += 2
	}
	return consumed, nil
}

func (p *Publish) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}
