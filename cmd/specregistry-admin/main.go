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

// Command specregistry-admin talks to a running schema registry.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amtp-protocol/specregistry/internal/types"
)

// client is a thin HTTP client for the registry API.
type client struct {
	baseURL string
	http    *http.Client
	verbose bool
	log     io.Writer
}

func newClient(baseURL string, timeout time.Duration, verbose bool, log io.Writer) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		verbose: verbose,
		log:     log,
	}
}

// response is a successful API reply.
type response struct {
	Header http.Header
	Body   []byte
}

func (c *client) do(req *http.Request) (*response, error) {
	if c.verbose {
		fmt.Fprintf(c.log, "Making %s request to: %s\n", req.Method, req.URL)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.verbose {
		fmt.Fprintf(c.log, "Response status: %d\n", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		var errorResp types.ErrorResponse
		if json.Unmarshal(body, &errorResp) == nil && errorResp.Detail != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errorResp.Detail)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &response{Header: resp.Header, Body: body}, nil
}

func (c *client) get(endpoint string, query url.Values) (*response, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// upload posts the file at path as the spec part of a multipart form.
func (c *client) upload(application, service, path string) (*types.UploadResponse, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("application", application); err != nil {
		return nil, err
	}
	if service != "" {
		if err := writer.WriteField("service", service); err != nil {
			return nil, err
		}
	}
	part, err := writer.CreateFormFile("spec", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/schemas/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var result types.UploadResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func scopeQuery(application, service string) url.Values {
	query := url.Values{"application": {application}}
	if service != "" {
		query.Set("service", service)
	}
	return query
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
