// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localnode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/onboard/lib/governance"
)

// DefaultGovernancePath is the gjson path of the governance list in the
// primary configuration.
const DefaultGovernancePath = "governances"

// normalize converts a configuration document to JSON. The extension
// picks the parser when it names one; the secure store keeps every
// document under a .json name whatever its format, so JSON-named
// content that is not JSON is tried as TOML and then YAML.
func normalize(name string, content []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return yamlToJSON(content)
	case ".toml":
		return tomlToJSON(content)
	}

	converted := jsonc.ToJSON(content)
	if gjson.ValidBytes(converted) {
		return converted, nil
	}
	if normalized, err := tomlToJSON(content); err == nil {
		return normalized, nil
	}
	normalized, err := yamlToJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%s is not JSON, TOML or YAML", filepath.Base(name))
	}
	return normalized, nil
}

func yamlToJSON(content []byte) ([]byte, error) {
	var document map[string]any
	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if document == nil {
		return nil, fmt.Errorf("parsing YAML: document is not a mapping")
	}
	return json.Marshal(document)
}

func tomlToJSON(content []byte) ([]byte, error) {
	var document map[string]any
	if err := toml.NewDecoder(bytes.NewReader(content)).Decode(&document); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return json.Marshal(document)
}

// DesiredGovernances extracts the governance ids a primary
// configuration declares at path. A missing path declares nothing.
// Elements are either strings or objects carrying an "id" string.
func DesiredGovernances(name string, content []byte, path string) ([]governance.ID, error) {
	if path == "" {
		path = DefaultGovernancePath
	}
	document, err := normalize(name, content)
	if err != nil {
		return nil, err
	}

	value := gjson.GetBytes(document, path)
	if !value.Exists() {
		return nil, nil
	}
	if value.Type == gjson.String {
		return governance.ParseIDs([]string{value.String()}), nil
	}
	if !value.IsArray() {
		return nil, fmt.Errorf("%s: expected a list of governances, found %s", path, value.Type)
	}

	var raw []string
	var elementError error
	value.ForEach(func(index, element gjson.Result) bool {
		switch {
		case element.Type == gjson.String:
			raw = append(raw, element.String())
		case element.IsObject() && element.Get("id").Type == gjson.String:
			raw = append(raw, element.Get("id").String())
		default:
			elementError = fmt.Errorf("%s.%d: expected a string or an object with an id", path, index.Int())
			return false
		}
		return true
	})
	if elementError != nil {
		return nil, elementError
	}
	return governance.ParseIDs(raw), nil
}
