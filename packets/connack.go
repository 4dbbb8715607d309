// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/rapidreach/speakerlink/packets/codec"
)

// CONNACK return codes.
const (
	ConnAccepted           byte = 0x00
	ConnRefusedProtocol    byte = 0x01
	ConnRefusedIDRejected  byte = 0x02
	ConnRefusedUnavailable byte = 0x03
	ConnRefusedBadAuth     byte = 0x04
	ConnRefusedNotAuth     byte = 0x05
)

// ConnAck represents the MQTT V3.1.1 CONNACK packet.
type ConnAck struct {
	FixedHeader
	SessionPresent bool
	ReturnCode     byte
}

func (c *ConnAck) String() string {
	return fmt.Sprintf("%s\nSessionPresent: %t\nReturnCode: %d\n", c.FixedHeader, c.SessionPresent, c.ReturnCode)
}

func (c *ConnAck) Type() byte {
	return ConnAckType
}

func (c *ConnAck) Encode() []byte {
	var body []byte
	var flags byte
	if c.SessionPresent {
		flags |= 0x01
	}
	body = append(body, flags)
	body = append(body, c.ReturnCode)

	c.FixedHeader.RemainingLength = len(body)
	return append(c.FixedHeader.Encode(), body...)
}

func (c *ConnAck) Unpack(r io.Reader) error {
	flags, err := codec.DecodeByte(r)
	if err != nil {
		return err
	}
	c.SessionPresent = (flags & 0x01) > 0

	c.ReturnCode, err = codec.DecodeByte(r)
	return err
}

func (c *ConnAck) Pack(w io.Writer) error {
	_, err := w.Write(c.Encode())
	return err
}
