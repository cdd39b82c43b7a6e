// Copyright (c) 2025 The DataBridge Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package manifest renders a delivered transfer's payload as a Frictionless
// data package, written next to the delivered files so downstream departments
// can see exactly what landed without asking the catalog.
package manifest

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"

	"github.com/databridge-io/databridge/catalog"
)

// A Manifest is one written data package: the package itself for journaling
// and the path it was saved under.
type Manifest struct {
	Package *datapackage.Package
	Path    string
}

// Write builds the data package for a delivered transfer and saves it as
// manifest.json inside the transfer's production directory.
func Write(transfer catalog.Transfer, files []catalog.TransferFile,
	artist catalog.User) (*Manifest, error) {

	resources := make([]any, 0, len(files))
	for _, file := range files {
		resource := map[string]any{
			"name":  resourceName(file.Filename),
			"path":  file.Filename,
			"bytes": file.SizeBytes,
		}
		if file.ChecksumSHA256 != "" {
			resource["hash"] = "sha256:" + file.ChecksumSHA256
		}
		resources = append(resources, resource)
	}

	contributor := map[string]any{
		"title": artist.DisplayName,
		"role":  "author",
	}
	if artist.Email != "" {
		contributor["email"] = artist.Email
	}

	descriptor := map[string]any{
		"name":      resourceName(transfer.Reference),
		"resources": resources,
		"created":   time.Now().UTC().Format(time.RFC3339),
		"profile":   "data-package",
		"keywords":  []any{"databridge", "delivery"},
		"contributors": []any{
			contributor,
		},
		"description": transfer.Description,
	}

	pkg, err := datapackage.New(descriptor, ".", validator.InMemoryLoader())
	if err != nil {
		return nil, err
	}

	path := filepath.Join(transfer.ProductionPath, "manifest.json")
	if err := pkg.SaveDescriptor(path); err != nil {
		return nil, err
	}
	return &Manifest{Package: pkg, Path: path}, nil
}

// resourceName squeezes a filename into the character set Frictionless
// allows for names (lowercase letters, digits, "-", ".", "_", "/").
func resourceName(filename string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(filename) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '-', r == '.', r == '_', r == '/':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	if builder.Len() == 0 {
		return "file"
	}
	return builder.String()
}
