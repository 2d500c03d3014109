// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ibc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// StdAck is the acknowledgement of a received packet. It encodes either as
// {"result": "<base64>"} or {"error": "<message>"}.
type StdAck struct {
	result []byte
	err    string
	failed bool
}

func AckSuccess(result []byte) StdAck {
	return StdAck{result: result}
}

// AckResponse acknowledges with the json encoding of resp.
func AckResponse(resp any) (StdAck, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return StdAck{}, errors.Wrap(err, "encode ack response")
	}
	return AckSuccess(data), nil
}

func AckFail(message string) StdAck {
	return StdAck{err: message, failed: true}
}

func (a StdAck) IsSuccess() bool { return !a.failed }

func (a StdAck) Result() []byte { return a.result }

func (a StdAck) Error() string { return a.err }

// Bytes returns the wire encoding of the ack.
func (a StdAck) Bytes() []byte {
	data, _ := json.Marshal(a)
	return data
}

func (a StdAck) MarshalJSON() ([]byte, error) {
	if a.failed {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{a.err})
	}
	result := a.result
	if result == nil {
		result = []byte{}
	}
	return json.Marshal(struct {
		Result []byte `json:"result"`
	}{result})
}

func (a *StdAck) UnmarshalJSON(data []byte) error {
	var obj struct {
		Result *[]byte `json:"result"`
		Error  *string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Result != nil && obj.Error == nil:
		*a = AckSuccess(*obj.Result)
	case obj.Error != nil && obj.Result == nil:
		*a = AckFail(*obj.Error)
	default:
		return errors.New("ack must carry exactly one of result or error")
	}
	return nil
}

// ParseAck decodes the wire encoding of an ack.
func ParseAck(data []byte) (StdAck, error) {
	var ack StdAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return StdAck{}, errors.Wrap(err, "decode ack")
	}
	return ack, nil
}
