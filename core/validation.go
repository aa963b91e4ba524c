// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateChunkDocument validates a ChunkDocument before it is handed to an index.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be blank
//
// NOT validated:
//   - Source and URL (manual documents may omit the URL)
func ValidateChunkDocument(doc *ChunkDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidChunkDocument)
	}

	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkDocument, ErrEmptyID)
	}

	if strings.TrimSpace(doc.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkDocument, ErrEmptyContent)
	}

	return nil
}

// ValidateChunkDocuments validates every document and returns the first failure,
// annotated with the offending ID.
func ValidateChunkDocuments(docs []ChunkDocument) error {
	for i := range docs {
		if err := ValidateChunkDocument(&docs[i]); err != nil {
			return fmt.Errorf("document %d (%q): %w", i, docs[i].ID, err)
		}
	}
	return nil
}
