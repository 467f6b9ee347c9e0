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
	"fmt"
	"strings"

	"github.com/amtp-protocol/specregistry/internal/catalog"
	"github.com/amtp-protocol/specregistry/internal/types"
)

// applicationSegment stands in for the service directory of
// application-level versions.
const applicationSegment = "_app_"

// Key returns the slash-separated artifact key for one version:
//
//	<application>/<service or _app_>/v<N>.<json|yaml>
//
// Distinct (scope, version, media type) tuples always produce distinct keys.
func Key(scope catalog.Scope, version int, mediaType string) string {
	ext := "yaml"
	if mediaType == types.MediaTypeJSON {
		ext = "json"
	}

	serviceSegment := applicationSegment
	if service, ok := scope.ServiceName(); ok {
		serviceSegment = escapeSegment(service)
		if serviceSegment == applicationSegment {
			serviceSegment = "%5Fapp%5F"
		}
	}

	return fmt.Sprintf("%s/%s/v%d.%s", escapeSegment(scope.ApplicationName()), serviceSegment, version, ext)
}

// escapeSegment percent-encodes bytes that would change the path shape.
// '%' is itself escaped, so the mapping is reversible.
func escapeSegment(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '/', c == '\\', c == '%', c < 0x20, c == 0x7f:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}

	out := b.String()
	if out == "." || out == ".." {
		return strings.Repeat("%2E", len(out))
	}
	return out
}
