/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package openapi recognises uploaded OpenAPI 3.x documents.
package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/amtp-protocol/specregistry/internal/types"
)

// Document is an accepted upload.
type Document struct {
	MediaType string
	Root      map[string]interface{}
	// OpenAPI is the literal text of the root "openapi" field.
	OpenAPI string
	Info    Info
}

// Info is the part of the document's info object kept in the catalog.
type Info struct {
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

// Options tunes a Validator.
type Options struct {
	// StrictStructure additionally requires an info object with title and
	// version, and at least one of paths, components or webhooks.
	StrictStructure bool
}

// Validator accepts or rejects raw upload bytes. It is safe for concurrent use.
type Validator struct {
	structure *jsonschema.Schema
}

// NewValidator builds a Validator.
func NewValidator(opts Options) (*Validator, error) {
	v := &Validator{}
	if opts.StrictStructure {
		compiled, err := compileStructureSchema()
		if err != nil {
			return nil, err
		}
		v.structure = compiled
	}
	return v, nil
}

// Validate detects the media type of raw, parses it and checks it has an
// OpenAPI 3.x root. JSON is tried before YAML.
func (v *Validator) Validate(raw []byte) (*Document, error) {
	if !utf8.Valid(raw) {
		return nil, reject(ErrEncoding, nil, "Uploaded file must be UTF-8 encoded.")
	}

	doc, err := parseJSON(raw)
	if errors.Is(err, errNotJSON) {
		doc, err = parseYAML(raw)
	}
	if err != nil {
		return nil, err
	}

	if v.structure != nil {
		if err := v.checkStructure(doc.Root); err != nil {
			return nil, err
		}
	}

	doc.Info = extractInfo(doc.Root)
	return doc, nil
}

var errNotJSON = errors.New("not json")

func parseJSON(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, errNotJSON
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errNotJSON
	}

	root, ok := value.(map[string]interface{})
	if !ok {
		return nil, reject(ErrStructure, nil, "Spec must be a JSON/YAML object.")
	}

	version, present := jsonScalarText(root["openapi"])
	if !present {
		return nil, reject(ErrSchemaField, nil, "Missing 'openapi' field at the root.")
	}
	if !strings.HasPrefix(version, "3.") {
		return nil, reject(ErrVersion, nil, "Only OpenAPI 3.x specs are supported (got: %s)", version)
	}

	return &Document{MediaType: types.MediaTypeJSON, Root: root, OpenAPI: version}, nil
}

// jsonScalarText renders a decoded JSON value the way it was written and
// reports false for values that count as absent.
func jsonScalarText(value interface{}) (string, bool) {
	switch val := value.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case json.Number:
		f, err := val.Float64()
		return val.String(), err != nil || f != 0
	case bool:
		if !val {
			return "", false
		}
		return "True", true
	case map[string]interface{}:
		if len(val) == 0 {
			return "", false
		}
		return fmt.Sprint(val), true
	case []interface{}:
		if len(val) == 0 {
			return "", false
		}
		return fmt.Sprint(val), true
	default:
		return fmt.Sprint(val), true
	}
}

func parseYAML(raw []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))

	var node yaml.Node
	if err := dec.Decode(&node); err != nil && err != io.EOF {
		return nil, reject(ErrFormat, err, "Uploaded file is not valid JSON or YAML.")
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, reject(ErrFormat, err, "Uploaded file is not valid JSON or YAML.")
	}

	body := &node
	if body.Kind == yaml.DocumentNode && len(body.Content) == 1 {
		body = body.Content[0]
	}
	body = resolveAlias(body)
	if body.Kind != yaml.MappingNode {
		return nil, reject(ErrStructure, nil, "Spec must be a JSON/YAML object.")
	}

	var root map[string]interface{}
	if err := body.Decode(&root); err != nil {
		return nil, reject(ErrStructure, err, "Spec must be a JSON/YAML object.")
	}

	version, present := yamlScalarText(lookupKey(body, "openapi"))
	if !present {
		return nil, reject(ErrSchemaField, nil, "Missing 'openapi' field at the root.")
	}
	if !strings.HasPrefix(version, "3.") {
		return nil, reject(ErrVersion, nil, "Only OpenAPI 3.x specs are supported (got: %s)", version)
	}

	return &Document{MediaType: types.MediaTypeYAML, Root: root, OpenAPI: version}, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func lookupKey(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolveAlias(mapping.Content[i+1])
		}
	}
	return nil
}

// yamlScalarText returns the literal source text of a scalar so that
// "openapi: 3.0" keeps its trailing zero.
func yamlScalarText(n *yaml.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return "", false
		case "!!bool":
			b, _ := strconv.ParseBool(strings.ToLower(n.Value))
			if !b {
				return "", false
			}
			return "True", true
		case "!!int", "!!float":
			if f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64); err == nil && f == 0 {
				return "", false
			}
		}
		return n.Value, n.Value != ""
	case yaml.MappingNode, yaml.SequenceNode:
		if len(n.Content) == 0 {
			return "", false
		}
		var decoded interface{}
		if err := n.Decode(&decoded); err != nil {
			return "", true
		}
		return fmt.Sprint(decoded), true
	default:
		return "", false
	}
}

func extractInfo(root map[string]interface{}) Info {
	var info Info
	section, ok := root["info"].(map[string]interface{})
	if !ok {
		return info
	}
	if title, ok := section["title"]; ok && title != nil {
		info.Title = fmt.Sprint(title)
	}
	if version, ok := section["version"]; ok && version != nil {
		info.Version = fmt.Sprint(version)
	}
	return info
}
