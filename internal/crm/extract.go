package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// idStrategy looks for a person id in a decoded response body.
type idStrategy struct {
	name string
	find func(root any) (string, bool)
}

// idStrategies are tried in order. Known envelopes first, depth-first search last.
var idStrategies = []idStrategy{
	{"data.createPerson.id", pathID("data", "createPerson", "id")},
	{"data.updatePerson.id", pathID("data", "updatePerson", "id")},
	{"data.person.id", pathID("data", "person", "id")},
	{"data.id", pathID("data", "id")},
	{"depth-first", depthFirstID},
}

// ExtractID returns the person id in a create/update response body and the name of the
// strategy that found it.
func ExtractID(body []byte) (id string, strategy string, err error) {
	root, err := decodeOrdered(json.NewDecoder(bytes.NewReader(body)))
	if err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	for _, s := range idStrategies {
		if id, ok := s.find(root); ok {
			return id, s.name, nil
		}
	}
	return "", "", fmt.Errorf("no id in response")
}

// object keeps JSON keys in document order so the depth-first walk is deterministic.
type object struct {
	keys   []string
	values []any
}

func (o *object) get(key string) (any, bool) {
	for i, k := range o.keys {
		if k == key {
			return o.values[i], true
		}
	}
	return nil, false
}

func pathID(path ...string) func(any) (string, bool) {
	return func(root any) (string, bool) {
		cur := root
		for _, key := range path {
			obj, ok := cur.(*object)
			if !ok {
				return "", false
			}
			if cur, ok = obj.get(key); !ok {
				return "", false
			}
		}
		return idString(cur)
	}
}

// depthFirstID checks an object's own "id" before descending into its values in order.
func depthFirstID(node any) (string, bool) {
	switch n := node.(type) {
	case *object:
		if v, ok := n.get("id"); ok {
			if id, ok := idString(v); ok {
				return id, true
			}
		}
		for _, v := range n.values {
			if id, ok := depthFirstID(v); ok {
				return id, true
			}
		}
	case []any:
		for _, v := range n {
			if id, ok := depthFirstID(v); ok {
				return id, true
			}
		}
	}
	return "", false
}

func idString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := &object{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.keys = append(obj.keys, key)
			obj.values = append(obj.values, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}
