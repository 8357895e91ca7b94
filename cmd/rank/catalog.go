// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/rank"
)

// maxCatalogFileSize bounds catalog reads (8MB). Catalogs are demo and
// test corpora, not production indexes.
const maxCatalogFileSize = 8 * 1024 * 1024

// catalogFile is the YAML shape of a document catalog.
type catalogFile struct {
	Documents []rank.Document `yaml:"documents"`
}

// loadCatalog reads a YAML document catalog.
//
// Inputs:
//   - path: Catalog file path.
//
// Outputs:
//   - []rank.Document: The catalog's documents, in file order.
//   - error: Non-nil for unreadable files, bad YAML, an empty document
//     list, or duplicate document IDs.
func loadCatalog(path string) ([]rank.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	if info.Size() > maxCatalogFileSize {
		return nil, fmt.Errorf("catalog too large: %d bytes (max %d)", info.Size(), maxCatalogFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Documents) == 0 {
		return nil, fmt.Errorf("catalog %s: no documents", path)
	}

	seen := make(map[rank.DocID]struct{}, len(file.Documents))
	for _, doc := range file.Documents {
		if _, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate document id %d", path, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}
	return file.Documents, nil
}

// indexUID derives an index name from a catalog path: the base name
// without its extension, sanitized into a well-formed UID.
func indexUID(path string) (string, error) {
	base := filepath.Base(path)
	uid, err := validation.SanitizeIndexUID(strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return "", fmt.Errorf("catalog %s: %w", path, err)
	}
	return uid, nil
}

// buildIndexes loads every catalog into svc, one index per file, and
// returns the index UIDs in argument order.
func buildIndexes(ctx context.Context, svc *rank.Service, paths []string) ([]string, error) {
	uids := make([]string, 0, len(paths))
	for _, path := range paths {
		docs, err := loadCatalog(path)
		if err != nil {
			return nil, err
		}

		uid, err := indexUID(path)
		if err != nil {
			return nil, err
		}
		idx, err := svc.CreateIndex(uid)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if err := idx.AddDocument(ctx, doc); err != nil {
				return nil, fmt.Errorf("index %q doc %d: %w", uid, doc.ID, err)
			}
		}
		uids = append(uids, uid)
	}
	return uids, nil
}
