package variables

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// LoadYAML читает переменные из YAML документа, сохраняя порядок ключей.
//
//	sdp_replace_ip: "10.0.0.1|192.0.2.1"
//	sip_multipart:
//	  - "text/plain:hello"
//	  - "application/json:{}"
//
// Скалярное значение становится скалярной переменной, последовательность - массивом.
func LoadYAML(r io.Reader) (*Store, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("ошибка разбора YAML: %w", err)
	}

	store := NewStore()
	if len(doc.Content) == 0 {
		return store, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ожидается YAML mapping на верхнем уровне, получено %v", root.Kind)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("строка %d: имя переменной должно быть скаляром", k.Line)
		}

		switch v.Kind {
		case yaml.ScalarNode:
			store.Set(k.Value, v.Value)
		case yaml.SequenceNode:
			values := make([]string, 0, len(v.Content))
			for _, item := range v.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("строка %d: элементы %s должны быть скалярами", item.Line, k.Value)
				}
				values = append(values, item.Value)
			}
			store.SetArray(k.Value, values...)
		default:
			return nil, fmt.Errorf("строка %d: неподдерживаемое значение для %s", v.Line, k.Value)
		}
	}

	return store, nil
}
