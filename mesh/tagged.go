// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

var (
	ErrMalformedMsg   = errors.New("malformed message")
	ErrUnknownVariant = errors.New("unknown message variant")
)

// Tagged is a variant of a closed message union. It is encoded as a single
// key object, {"<tag>": <body>}.
type Tagged interface {
	Tag() string
}

// MarshalTagged encodes a variant with its tag.
func MarshalTagged(m Tagged) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", m.Tag())
	}
	return json.Marshal(map[string]json.RawMessage{m.Tag(): body})
}

// MustMarshalTagged is like MarshalTagged but panics on error.
func MustMarshalTagged(m Tagged) []byte {
	data, err := MarshalTagged(m)
	if err != nil {
		panic(err)
	}
	return data
}

// UnmarshalTagged decodes data into a fresh instance of the variant whose tag
// matches. variants are pointer prototypes, e.g. (*Stake)(nil). Unknown tags are
// reported as ErrUnknownVariant.
func UnmarshalTagged[M Tagged](data []byte, variants ...M) (M, error) {
	var zero M

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return zero, errors.Wrap(ErrMalformedMsg, err.Error())
	}
	if len(obj) != 1 {
		return zero, errors.Wrapf(ErrMalformedMsg, "expected one variant, got %d", len(obj))
	}
	for tag, body := range obj {
		for _, v := range variants {
			typ := reflect.TypeOf(v)
			if typ.Kind() != reflect.Pointer {
				panic("mesh: variant prototypes must be pointers")
			}
			ptr := reflect.New(typ.Elem())
			m := ptr.Interface().(M)
			if m.Tag() != tag {
				continue
			}
			if err := json.Unmarshal(body, m); err != nil {
				return zero, errors.Wrapf(ErrMalformedMsg, "%s: %v", tag, err)
			}
			return m, nil
		}
		return zero, errors.Wrapf(ErrUnknownVariant, "%q", tag)
	}
	return zero, nil
}
