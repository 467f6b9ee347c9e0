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

package openapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed structure.schema.json
var structureSchema []byte

func compileStructureSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("structure.schema.json", bytes.NewReader(structureSchema)); err != nil {
		return nil, fmt.Errorf("failed to add structure schema: %w", err)
	}
	schema, err := compiler.Compile("structure.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structure schema: %w", err)
	}
	return schema, nil
}

func (v *Validator) checkStructure(root map[string]interface{}) error {
	value, err := toJSONValue(root)
	if err != nil {
		return reject(ErrStructure, err, "Spec must be a JSON/YAML object.")
	}
	if err := v.structure.Validate(value); err != nil {
		reason := err.Error()
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) && len(verr.Causes) > 0 {
			reason = verr.Causes[0].Error()
		}
		return reject(ErrStructure, err, "Spec does not have a valid OpenAPI 3.x structure: %s", reason)
	}
	return nil
}

// toJSONValue converts a decoded YAML or JSON tree into the value shapes the
// schema validator understands.
func toJSONValue(root map[string]interface{}) (interface{}, error) {
	data, err := json.Marshal(normalize(root))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize rewrites map[interface{}]interface{} nodes, which YAML produces
// for non-string keys such as response codes, into string-keyed maps.
func normalize(value interface{}) interface{} {
	switch val := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = normalize(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[fmt.Sprint(k)] = normalize(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, v := range val {
			out[i] = normalize(v)
		}
		return out
	default:
		return val
	}
}
