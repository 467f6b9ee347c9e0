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

package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amtp-protocol/specregistry/internal/catalog"
	"github.com/amtp-protocol/specregistry/internal/types"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name      string
		scope     catalog.Scope
		version   int
		mediaType string
		want      string
	}{
		{"service json", catalog.ServiceScope{Application: "shop", Service: "orders"}, 3, types.MediaTypeJSON, "shop/orders/v3.json"},
		{"application yaml", catalog.ApplicationScope{Application: "shop"}, 1, types.MediaTypeYAML, "shop/_app_/v1.yaml"},
		{"slash in names", catalog.ServiceScope{Application: "a/b", Service: "c/d"}, 2, types.MediaTypeJSON, "a%2Fb/c%2Fd/v2.json"},
		{"backslash", catalog.ApplicationScope{Application: `a\b`}, 1, types.MediaTypeJSON, "a%5Cb/_app_/v1.json"},
		{"percent", catalog.ApplicationScope{Application: "a%2Fb"}, 1, types.MediaTypeJSON, "a%252Fb/_app_/v1.json"},
		{"dot segments", catalog.ServiceScope{Application: "..", Service: "."}, 1, types.MediaTypeJSON, "%2E%2E/%2E/v1.json"},
		{"reserved service name", catalog.ServiceScope{Application: "shop", Service: "_app_"}, 1, types.MediaTypeJSON, "shop/%5Fapp%5F/v1.json"},
		{"control character", catalog.ApplicationScope{Application: "a\nb"}, 1, types.MediaTypeJSON, "a%0Ab/_app_/v1.json"},
		{"unicode kept", catalog.ApplicationScope{Application: "café"}, 1, types.MediaTypeJSON, "café/_app_/v1.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.scope, tt.version, tt.mediaType))
		})
	}
}

func TestKeyIsInjective(t *testing.T) {
	scopes := []catalog.Scope{
		catalog.ApplicationScope{Application: "shop"},
		catalog.ServiceScope{Application: "shop", Service: "_app_"},
		catalog.ServiceScope{Application: "shop", Service: "%5Fapp%5F"},
		catalog.ServiceScope{Application: "shop/orders", Service: "x"},
		catalog.ServiceScope{Application: "shop", Service: "orders/x"},
		catalog.ServiceScope{Application: "shop_orders", Service: "x"},
		catalog.ServiceScope{Application: "shop", Service: "."},
		catalog.ServiceScope{Application: "shop", Service: "%2E"},
	}

	seen := map[string]catalog.Scope{}
	for _, s := range scopes {
		key := Key(s, 1, types.MediaTypeJSON)
		if prev, ok := seen[key]; ok {
			t.Fatalf("scopes %#v and %#v map to the same key %q", prev, s, key)
		}
		seen[key] = s
		assert.Equal(t, 2, strings.Count(key, "/"), "key %q must have exactly three segments", key)
	}
}
