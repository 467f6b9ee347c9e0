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

package catalog

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyApplication is returned for a blank application name.
var ErrEmptyApplication = errors.New("application name must not be empty")

// Scope owns one version counter. It is either an ApplicationScope or a
// ServiceScope; the two never share a series.
type Scope interface {
	ApplicationName() string
	// ServiceName returns the service and true for service scopes.
	ServiceName() (string, bool)
	// Key identifies the scope within a process. Segments are length
	// prefixed so no pair of names can collide.
	Key() string
	sealed()
}

// ApplicationScope is the application-level series.
type ApplicationScope struct {
	Application string
}

func (s ApplicationScope) ApplicationName() string     { return s.Application }
func (s ApplicationScope) ServiceName() (string, bool) { return "", false }
func (s ApplicationScope) Key() string                 { return "a" + lengthPrefixed(s.Application) }
func (ApplicationScope) sealed()                       {}

// ServiceScope is the series of one named service under an application.
type ServiceScope struct {
	Application string
	Service     string
}

func (s ServiceScope) ApplicationName() string     { return s.Application }
func (s ServiceScope) ServiceName() (string, bool) { return s.Service, true }
func (s ServiceScope) Key() string {
	return "s" + lengthPrefixed(s.Application) + lengthPrefixed(s.Service)
}
func (ServiceScope) sealed() {}

func lengthPrefixed(name string) string {
	return strconv.Itoa(len(name)) + ":" + name
}

// NewScope trims both names. A blank service selects the application-level
// scope.
func NewScope(application, service string) (Scope, error) {
	application = strings.TrimSpace(application)
	if application == "" {
		return nil, ErrEmptyApplication
	}
	service = strings.TrimSpace(service)
	if service == "" {
		return ApplicationScope{Application: application}, nil
	}
	return ServiceScope{Application: application, Service: service}, nil
}

// Ref is a resolved scope. ServiceID is zero for application scopes.
type Ref struct {
	ApplicationID uint
	ServiceID     uint
}

// IsServiceScope reports whether the ref points at a service series.
func (r Ref) IsServiceScope() bool {
	return r.ServiceID != 0
}
