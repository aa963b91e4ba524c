package core

import (
	"errors"
	"testing"
)

func TestValidateChunkDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *ChunkDocument
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     &ChunkDocument{ID: "url_abc_chunk_0", Text: "Hello world", Source: "Docs", URL: "https://example.com"},
			wantErr: nil,
		},
		{
			name:    "valid document without url",
			doc:     &ChunkDocument{ID: "manual_faq_0", Text: "FAQ: answer"},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidChunkDocument,
		},
		{
			name:    "empty id",
			doc:     &ChunkDocument{Text: "Hello"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "blank text",
			doc:     &ChunkDocument{ID: "x", Text: "   \n\t"},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunkDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunkDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidChunkDocument) {
				t.Errorf("ValidateChunkDocument() error should wrap ErrInvalidChunkDocument")
			}
		})
	}
}

func TestValidateChunkDocuments(t *testing.T) {
	docs := []ChunkDocument{
		{ID: "a", Text: "first"},
		{ID: "", Text: "second"},
	}

	err := ValidateChunkDocuments(docs)
	if !errors.Is(err, ErrEmptyID) {
		t.Errorf("ValidateChunkDocuments() error = %v, want ErrEmptyID", err)
	}

	if err := ValidateChunkDocuments(docs[:1]); err != nil {
		t.Errorf("ValidateChunkDocuments() error = %v, want nil", err)
	}
}
