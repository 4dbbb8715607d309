// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"fmt"
	"io"

	"github.com/rapidreach/speakerlink/packets/codec"
)

// Unsubscribe represents the MQTT V3.1.1 UNSUBSCRIBE packet.
type Unsubscribe struct {
	FixedHeader
	ID     uint16
	Topics []string
}

func (u *Unsubscribe) String() string {
	return fmt.Sprintf("%s\nPacketID: %d\nTopics: %v\n", u.FixedHeader, u.ID, u.Topics)
}

func (u *Unsubscribe) Type() byte {
	return UnsubscribeType
}

func (u *Unsubscribe) Encode() []byte {
	var body []byte
	body = append(body, codec.EncodeUint16(u.ID)...)
	for _, topic := range u.Topics {
		body = append(body, codec.EncodeString(topic)...)
	}
	u.FixedHeader.RemainingLength = len(body)
	return append(u.FixedHeader.Encode(), body...)
}

func (u *Unsubscribe) Unpack(r io.Reader) error {
	var err error
	u.ID, err = codec.DecodeUint16(r)
	if err != nil {
		return err
	}

	for {
		topic, err := codec.DecodeString(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		u.Topics = append(u.Topics, topic)
	}
	return nil
}

func (u *Unsubscribe) Pack(w io.Writer) error {
	_, err := w.Write(u.Encode())
	return err
}
