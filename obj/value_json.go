package obj

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON renders a Value the way the wire protocol expects: plain JSON
// scalars/arrays/objects, with Set flattened to a JSON array (the wire has
// no set type).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindList, KindSet:
		items := v.List
		if v.Kind == KindSet {
			items = v.Set
		}
		buf := bytes.NewBufferString("[")
		for i, it := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		buf := bytes.NewBufferString("{")
		if v.Map != nil {
			for i, k := range v.Map.Keys() {
				if i > 0 {
					buf.WriteByte(',')
				}
				kb, _ := json.Marshal(k)
				buf.Write(kb)
				buf.WriteByte(':')
				mv, _ := v.Map.Get(k)
				vb, err := mv.MarshalJSON()
				if err != nil {
					return nil, err
				}
				buf.Write(vb)
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes an arbitrary JSON scalar/array/object into a Value.
// JSON has no set type, so arrays always decode as KindList; callers that
// need set semantics (e.g. gather_set) build the Set explicitly.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded-JSON interface{} tree (as produced by
// encoding/json's default decoding into interface{}) into a Value tree.
func FromAny(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return NewString(t)
	case bool:
		return NewBool(t)
	case float64:
		return NewNumber(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromAny(it)
		}
		return NewList(items)
	case map[string]interface{}:
		m := NewOrderedMap()
		for k, mv := range t {
			m.Set(k, FromAny(mv))
		}
		return NewMap(m)
	default:
		return Null()
	}
}
