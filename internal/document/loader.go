package document

import (
	"fmt"
	"os"
	"path/filepath"
)

// Loader reads a file from disk into unchunked documents. Formats that
// need external tooling (PDF, spreadsheets) implement this interface
// outside the package.
type Loader interface {
	Load(path string) ([]Document, error)
}

// TextLoader loads plain-text files as a single document.
type TextLoader struct{}

func (TextLoader) Load(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return []Document{{
		Content:  string(data),
		Metadata: Metadata{Source: filepath.Base(path)},
	}}, nil
}
