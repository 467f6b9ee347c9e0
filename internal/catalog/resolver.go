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
	"context"
	"fmt"
)

// Resolve maps scope to catalog ids inside tx, creating the application and
// service rows on first use.
func Resolve(ctx context.Context, tx Tx, scope Scope) (Ref, error) {
	appID, err := tx.EnsureApplication(ctx, scope.ApplicationName())
	if err != nil {
		return Ref{}, fmt.Errorf("failed to resolve application: %w", err)
	}

	ref := Ref{ApplicationID: appID}
	if service, ok := scope.ServiceName(); ok {
		svcID, err := tx.EnsureService(ctx, appID, service)
		if err != nil {
			return Ref{}, fmt.Errorf("failed to resolve service: %w", err)
		}
		ref.ServiceID = svcID
	}
	return ref, nil
}

// Lookup maps scope to catalog ids without creating anything. It returns
// ErrApplicationNotFound or ErrServiceNotFound for unknown names.
func Lookup(ctx context.Context, r Reader, scope Scope) (Ref, error) {
	appID, err := r.FindApplication(ctx, scope.ApplicationName())
	if err != nil {
		return Ref{}, err
	}

	ref := Ref{ApplicationID: appID}
	if service, ok := scope.ServiceName(); ok {
		svcID, err := r.FindService(ctx, appID, service)
		if err != nil {
			return Ref{}, err
		}
		ref.ServiceID = svcID
	}
	return ref, nil
}

// AllocateNextVersion locks the series of ref and returns count+1. The
// caller must insert the record in the same tx before it commits.
func AllocateNextVersion(ctx context.Context, tx Tx, ref Ref) (int, error) {
	if err := tx.LockScope(ctx, ref); err != nil {
		return 0, fmt.Errorf("failed to lock scope: %w", err)
	}
	count, err := tx.CountVersions(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count + 1, nil
}
