// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import "io"

// Disconnect represents the MQTT V3.1.1 DISCONNECT packet.
type Disconnect struct {
	FixedHeader
}

func (d *Disconnect) String() string {
	return d.FixedHeader.String()
}

func (d *Disconnect) Type() byte {
	return DisconnectType
}

func (d *Disconnect) Encode() []byte {
	d.FixedHeader.RemainingLength = 0
	return d.FixedHeader.Encode()
}

func (d *Disconnect) Unpack(io.Reader) error {
	return nil
}

func (d *Disconnect) Pack(w io.Writer) error {
	_, err := w.Write(d.Encode())
	return err
}
