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

// Package digest computes content checksums for stored documents.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Supported algorithm names.
const (
	SHA256 = "sha256"
	BLAKE3 = "blake3"
)

// Digester hashes document bytes into a lowercase hex string.
type Digester interface {
	Algorithm() string
	Digest(data []byte) string
}

// New returns the Digester for algorithm.
func New(algorithm string) (Digester, error) {
	switch algorithm {
	case "", SHA256:
		return sha256Digester{}, nil
	case BLAKE3:
		return blake3Digester{}, nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
}

type sha256Digester struct{}

func (sha256Digester) Algorithm() string { return SHA256 }

func (sha256Digester) Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type blake3Digester struct{}

func (blake3Digester) Algorithm() string { return BLAKE3 }

func (blake3Digester) Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
