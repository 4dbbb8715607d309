// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/rapidreach/speakerlink/packets/codec"
)

// UnsubAck represents the MQTT V3.1.1 UNSUBACK packet.
type UnsubAck struct {
	FixedHeader
	ID uint16
}

func (u *UnsubAck) String() string {
	return fmt.Sprintf("%s\nPacketID: %d\n", u.FixedHeader, u.ID)
}

func (u *UnsubAck) Type() byte {
	return UnsubAckType
}

func (u *UnsubAck) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(u.ID)...)
	u.FixedHeader.RemainingLength = len(body)
	return append(u.FixedHeader.Encode(), body...)
}

func (u *UnsubAck) Unpack(r io.Reader) error {
	var err error
	u.ID, err = codec.DecodeUint16(r)
	return err
}

func (u *UnsubAck) Pack(w io.Writer) error {
	_, err := w.Write(u.Encode())
	return err
}
