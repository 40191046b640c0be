package document

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/jacentio/cfgtree/tree"
)

func decodeYAML(data []byte) (tree.Map, error) {
	var v any
	if err := yaml.UnmarshalWithOptions(data, &v, yaml.UseOrderedMap()); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	switch top := v.(type) {
	case nil:
		return tree.Map{}, nil
	case yaml.MapSlice:
		return yamlMap(top)
	default:
		return nil, fmt.Errorf("%w: top level is %T", ErrNotMapping, v)
	}
}

func yamlMap(ms yaml.MapSlice) (tree.Map, error) {
	m := make(tree.Map, 0, len(ms))
	for _, item := range ms {
		key := scalarString(item.Key)
		v, err := yamlValue(item.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		m = append(m, tree.Entry{Key: key, Value: v})
	}
	return m, nil
}

func yamlValue(v any) (tree.Value, error) {
	switch v := v.(type) {
	case yaml.MapSlice:
		return yamlMap(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ms := make(yaml.MapSlice, len(keys))
		for i, k := range keys {
			ms[i] = yaml.MapItem{Key: k, Value: v[k]}
		}
		return yamlMap(ms)
	case []any:
		m := make(tree.Map, 0, len(v))
		for i, elem := range v {
			ev, err := yamlValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			m = append(m, tree.Entry{Key: strconv.Itoa(i), Value: ev})
		}
		return m, nil
	default:
		return tree.Scalar(scalarString(v)), nil
	}
}

// scalarString renders a decoded scalar the way it is stored in a tree.
func scalarString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// EncodeYAML renders m as a YAML document, keeping key order.
func EncodeYAML(m tree.Map) ([]byte, error) {
	return yaml.Marshal(mapSlice(m))
}

// EncodeJSON renders m as a JSON object, keeping key order.
func EncodeJSON(m tree.Map) ([]byte, error) {
	return yaml.MarshalWithOptions(mapSlice(m), yaml.JSON())
}

func mapSlice(m tree.Map) yaml.MapSlice {
	ms := make(yaml.MapSlice, 0, len(m))
	for _, e := range m {
		var v any
		switch ev := e.Value.(type) {
		case tree.Map:
			v = mapSlice(ev)
		case tree.Scalar:
			v = string(ev)
		default:
			v = ""
		}
		ms = append(ms, yaml.MapItem{Key: e.Key, Value: v})
	}
	return ms
}
