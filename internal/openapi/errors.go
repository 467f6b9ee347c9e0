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
	"fmt"
)

// Rejection kinds. Match with errors.Is.
var (
	ErrEncoding    = errors.New("encoding")
	ErrFormat      = errors.New("format")
	ErrStructure   = errors.New("structure")
	ErrSchemaField = errors.New("schema field")
	ErrVersion     = errors.New("version")
)

// DocumentError describes why a document was rejected. Reason is safe to
// show to the uploader.
type DocumentError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *DocumentError) Error() string {
	return e.Reason
}

// Is matches the rejection kind.
func (e *DocumentError) Is(target error) bool {
	return e.Kind == target
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// KindName returns a stable identifier for the rejection kind.
func (e *DocumentError) KindName() string {
	switch e.Kind {
	case ErrEncoding:
		return "encoding"
	case ErrFormat:
		return "format"
	case ErrStructure:
		return "structure"
	case ErrSchemaField:
		return "schema_field"
	case ErrVersion:
		return "version"
	default:
		return "unknown"
	}
}

func reject(kind error, cause error, format string, args ...interface{}) *DocumentError {
	return &DocumentError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: cause}
}
