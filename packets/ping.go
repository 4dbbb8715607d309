// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import "io"

// PingReq represents the MQTT V3.1.1 PINGREQ packet.
type PingReq struct {
	FixedHeader
}

func (p *PingReq) String() string {
	return p.FixedHeader.String()
}

func (p *PingReq) Type() byte {
	return PingReqType
}

func (p *PingReq) Encode() []byte {
	p.FixedHeader.RemainingLength = 0
	return p.FixedHeader.Encode()
}

func (p *PingReq) Unpack(io.Reader) error {
	return nil
}

func (p *PingReq) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}

// PingResp represents the MQTT V3.1.1 PINGRESP packet.
type PingResp struct {
	FixedHeader
}

func (p *PingResp) String() string {
	return p.FixedHeader.String()
}

func (p *PingResp) Type() byte {
	return PingRespType
}

func (p *PingResp) Encode() []byte {
	p.FixedHeader.RemainingLength = 0
	return p.FixedHeader.Encode()
}

func (p *PingResp) Unpack(io.Reader) error {
	return nil
}

func (p *PingResp) Pack(w io.Writer) error {
	_, err := w.Write(p.Encode())
	return err
}
