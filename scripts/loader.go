// Package scripts loads op-list mini-game scripts from the YAML format
// they are authored in.
package scripts

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"

	"laughprop/obj"
)

type yamlOp map[string]interface{}

// Parse decodes a YAML document into a Script. The top-level document must
// be a sequence of op mappings; each mapping's "kind" key selects the op,
// and every other key becomes a named argument.
func Parse(data []byte) (obj.Script, error) {
	var raw []yamlOp
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return buildScript(raw)
}

func buildScript(raw []yamlOp) (obj.Script, error) {
	script := make(obj.Script, 0, len(raw))
	for i, entry := range raw {
		op, err := buildOp(entry)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		script = append(script, op)
	}
	return script, nil
}

func buildOp(entry yamlOp) (obj.Op, error) {
	op := obj.Op{Args: map[string]obj.Value{}}

	kindRaw, ok := entry["kind"]
	if !ok {
		return op, fmt.Errorf("missing \"kind\"")
	}
	kindStr, ok := kindRaw.(string)
	if !ok {
		return op, fmt.Errorf("\"kind\" must be a string")
	}
	op.Kind = obj.OpKind(kindStr)

	for key, val := range entry {
		switch key {
		case "kind":
			continue
		case "ops":
			seq, ok := val.([]interface{})
			if !ok {
				return op, fmt.Errorf("\"ops\" must be a sequence")
			}
			subRaw := make([]yamlOp, 0, len(seq))
			for _, item := range seq {
				sub, err := toYamlOp(item)
				if err != nil {
					return op, fmt.Errorf("per_player sub-op: %w", err)
				}
				subRaw = append(subRaw, sub)
			}
			sub, err := buildScript(subRaw)
			if err != nil {
				return op, err
			}
			op.Ops = sub
		case "ui":
			cmd, err := buildUICommand(val)
			if err != nil {
				return op, err
			}
			op.UI = cmd
		default:
			op.Args[key] = fromYAML(val)
		}
	}
	return op, nil
}

func toYamlOp(v interface{}) (yamlOp, error) {
	switch t := v.(type) {
	case yamlOp:
		return t, nil
	case map[string]interface{}:
		return yamlOp(t), nil
	case map[interface{}]interface{}:
		out := make(yamlOp, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string op key %v", k)
			}
			out[ks] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("op entry must be a mapping, got %T", v)
	}
}

func buildUICommand(v interface{}) (*obj.UICommand, error) {
	m, err := toYamlOp(v)
	if err != nil {
		return nil, fmt.Errorf("\"ui\": %w", err)
	}
	cmd := &obj.UICommand{}
	if c, ok := m["command"].(string); ok {
		cmd.Command = c
	}
	if p, ok := m["param"]; ok {
		cmd.Param = fromYAML(p)
	}
	if s, ok := m["sendToAll"].(bool); ok {
		cmd.SendToAll = s
	}
	return cmd, nil
}

// fromYAML converts a generically-decoded YAML value into a Value.
//
// Nested mapping key order is NOT preserved below the top level (yaml.v2's
// generic decode yields map[interface{}]interface{}, whose Go iteration
// order is random); this package sorts such keys alphabetically instead for
// determinism. Order-sensitive script data (anything built with make_map,
// keys_to_list, gather_map_by_player) is produced at runtime from ordered
// lists by the engine, not read back out of an author-literal YAML mapping,
// so this does not affect spec-required ordering guarantees.
func fromYAML(v interface{}) obj.Value {
	switch t := v.(type) {
	case nil:
		return obj.Null()
	case string:
		return obj.NewString(t)
	case bool:
		return obj.NewBool(t)
	case int:
		return obj.NewNumber(float64(t))
	case int64:
		return obj.NewNumber(float64(t))
	case float64:
		return obj.NewNumber(t)
	case []interface{}:
		items := make([]obj.Value, len(t))
		for i, e := range t {
			items[i] = fromYAML(e)
		}
		return obj.NewList(items)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := obj.NewOrderedMap()
		for _, k := range keys {
			m.Set(k, fromYAML(t[k]))
		}
		return obj.NewMap(m)
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(t))
		vals := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks := fmt.Sprintf("%v", k)
			keys = append(keys, ks)
			vals[ks] = val
		}
		sort.Strings(keys)
		m := obj.NewOrderedMap()
		for _, k := range keys {
			m.Set(k, fromYAML(vals[k]))
		}
		return obj.NewMap(m)
	default:
		return obj.Null()
	}
}
