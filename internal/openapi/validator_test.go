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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amtp-protocol/specregistry/internal/types"
)

const validYAML = `openapi: 3.0.0
info:
  title: Test API
  version: "1.0"
paths:
  /ping:
    get:
      responses:
        200:
          description: OK
`

const validJSON = `{"openapi":"3.0.0","info":{"title":"t","version":"1"},"paths":{}}`

func newValidator(t *testing.T, strict bool) *Validator {
	t.Helper()
	v, err := NewValidator(Options{StrictStructure: strict})
	require.NoError(t, err)
	return v
}

func TestValidateAccepts(t *testing.T) {
	v := newValidator(t, false)

	tests := []struct {
		name      string
		raw       string
		mediaType string
		openapi   string
	}{
		{"json document", validJSON, types.MediaTypeJSON, "3.0.0"},
		{"yaml document", validYAML, types.MediaTypeYAML, "3.0.0"},
		{"json numeric version", `{"openapi": 3.1, "paths": {}}`, types.MediaTypeJSON, "3.1"},
		{"yaml float keeps literal", "openapi: 3.0\npaths: {}\n", types.MediaTypeYAML, "3.0"},
		{"yaml anchor", "base: &v 3.0.3\nopenapi: *v\n", types.MediaTypeYAML, "3.0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := v.Validate([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.mediaType, doc.MediaType)
			assert.Equal(t, tt.openapi, doc.OpenAPI)
			assert.NotNil(t, doc.Root)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	v := newValidator(t, false)

	tests := []struct {
		name   string
		raw    []byte
		kind   error
		reason string
	}{
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}, ErrEncoding, "Uploaded file must be UTF-8 encoded."},
		{"neither json nor yaml", []byte("openapi: [unclosed"), ErrFormat, "Uploaded file is not valid JSON or YAML."},
		{"multiple yaml documents", []byte("openapi: 3.0.0\n---\nopenapi: 3.0.0\n"), ErrFormat, "Uploaded file is not valid JSON or YAML."},
		{"plain text", []byte("not a real openapi spec"), ErrStructure, "Spec must be a JSON/YAML object."},
		{"json array", []byte(`[1, 2]`), ErrStructure, "Spec must be a JSON/YAML object."},
		{"empty input", []byte(""), ErrStructure, "Spec must be a JSON/YAML object."},
		{"missing openapi", []byte(`{"swagger": "2.0"}`), ErrSchemaField, "Missing 'openapi' field at the root."},
		{"empty openapi", []byte(`{"openapi": ""}`), ErrSchemaField, "Missing 'openapi' field at the root."},
		{"null openapi yaml", []byte("openapi: ~\n"), ErrSchemaField, "Missing 'openapi' field at the root."},
		{"false openapi", []byte(`{"openapi": false}`), ErrSchemaField, "Missing 'openapi' field at the root."},
		{"openapi 2.0", []byte("openapi: \"2.0\"\n"), ErrVersion, "Only OpenAPI 3.x specs are supported (got: 2.0)"},
		{"openapi 3 without minor", []byte(`{"openapi": 3}`), ErrVersion, "Only OpenAPI 3.x specs are supported (got: 3)"},
		{"openapi true", []byte("openapi: true\n"), ErrVersion, "Only OpenAPI 3.x specs are supported (got: True)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := v.Validate(tt.raw)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.kind), "expected kind %v, got %v", tt.kind, err)
			assert.Equal(t, tt.reason, err.Error())

			var docErr *DocumentError
			require.True(t, errors.As(err, &docErr))
			assert.NotEqual(t, "unknown", docErr.KindName())
		})
	}
}

func TestValidateExtractsInfo(t *testing.T) {
	v := newValidator(t, false)

	doc, err := v.Validate([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, Info{Title: "Test API", Version: "1.0"}, doc.Info)

	doc, err = v.Validate([]byte(`{"openapi":"3.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, Info{}, doc.Info)
}

func TestValidateStrictStructure(t *testing.T) {
	v := newValidator(t, true)

	_, err := v.Validate([]byte(validYAML))
	require.NoError(t, err)

	_, err = v.Validate([]byte(validJSON))
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"openapi":"3.0.0","paths":{}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructure))

	_, err = v.Validate([]byte(`{"openapi":"3.0.0","info":{"title":"t","version":"1"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructure))
}
