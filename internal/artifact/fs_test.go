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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amtp-protocol/specregistry/internal/config"
	"github.com/amtp-protocol/specregistry/internal/types"
)

func TestFileStore_WriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("openapi: 3.0.0\ninfo:\n  title: x\r\n")
	location, err := store.Write(context.Background(), "shop/orders/v1.yaml", types.MediaTypeYAML, data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(store.BaseDir(), "shop", "orders", "v1.yaml"), location)

	got, err := store.Read(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(filepath.Dir(location))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_ReadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), filepath.Join(store.BaseDir(), "nope", "_app_", "v1.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ReadOutsideBase(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o644))

	_, err = store.Read(context.Background(), outside)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileStore_WriteRejectsEscape(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "../escape/v1.json", types.MediaTypeJSON, []byte("{}"))
	assert.Error(t, err)
}

func TestFileStore_Overwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "a/_app_/v1.json", types.MediaTypeJSON, []byte("old"))
	require.NoError(t, err)
	location, err := store.Write(context.Background(), "a/_app_/v1.json", types.MediaTypeJSON, []byte("new"))
	require.NoError(t, err)

	got, err := store.Read(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileStore_HealthCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.NoError(t, store.HealthCheck(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, store.HealthCheck(context.Background()))
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), config.ArtifactConfig{
		Backend:    "filesystem",
		Filesystem: config.FilesystemConfig{BaseDir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", store.Name())

	_, err = New(context.Background(), config.ArtifactConfig{Backend: "ftp"})
	assert.EqualError(t, err, "unsupported artifact backend: ftp")

	_, err = New(context.Background(), config.ArtifactConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestObjectKeyFromLocation(t *testing.T) {
	key, err := objectKeyFromLocation("s3", "bucket", "s3://bucket/pre/shop/_app_/v1.json")
	require.NoError(t, err)
	assert.Equal(t, "pre/shop/_app_/v1.json", key)

	_, err = objectKeyFromLocation("s3", "bucket", "s3://other/shop/_app_/v1.json")
	assert.Error(t, err)

	_, err = objectKeyFromLocation("gs", "bucket", "gs://bucket/")
	assert.Error(t, err)

	assert.Equal(t, "shop/_app_/v1.json", joinPrefix("", "shop/_app_/v1.json"))
	assert.Equal(t, "pre/shop/_app_/v1.json", joinPrefix("pre", "shop/_app_/v1.json"))
}
