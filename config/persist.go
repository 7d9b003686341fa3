package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"zotindex/internal/domain"
)

// SetBridgeToken stores token at semantic_search.write.token in the file at
// path, creating the file if needed. Every other key in the file is kept as
// written, including keys this package does not model.
func SetBridgeToken(path, token string) error {
	return setValue(path, []string{"semantic_search", "write", "token"}, token)
}

func setValue(path string, keys []string, value any) error {
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	doc, err := readRaw(path, isJSON)
	if err != nil {
		return err
	}

	node := doc
	for _, k := range keys[:len(keys)-1] {
		child, ok := node[k].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[k] = child
		}
		node = child
	}
	node[keys[len(keys)-1]] = value

	var data []byte
	if isJSON {
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func readRaw(path string, isJSON bool) (map[string]any, error) {
	doc := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", domain.ErrConfiguration, path, err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}
