package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/pkg/log"
)

const minioScheme = "minio://"

var plainTextExtensions = map[string]bool{
	"":      true,
	".txt":  true,
	".text": true,
	".md":   true,
	".csv":  true,
	".log":  true,
}

// ObjectReader fetches a whole object from object storage.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// TextExtractor turns a binary document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Loader resolves a document source to its text. Sources are local paths or
// minio://bucket/object. Both collaborators are optional.
type Loader struct {
	objects   ObjectReader
	extractor TextExtractor
}

// NewLoader creates a Loader. Pass nil for collaborators that are not configured.
func NewLoader(objects ObjectReader, extractor TextExtractor) *Loader {
	return &Loader{objects: objects, extractor: extractor}
}

// Load reads source and returns its text content.
func (l *Loader) Load(ctx context.Context, source string) (string, error) {
	data, name, err := l.read(ctx, source)
	if err != nil {
		return "", err
	}

	if plainTextExtensions[strings.ToLower(filepath.Ext(name))] {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8 text", model.ErrConfiguration, source)
		}
		return string(data), nil
	}

	if l.extractor == nil {
		return "", fmt.Errorf("%w: %s needs text extraction but tika is not configured", model.ErrConfiguration, source)
	}
	log.Infof("[Loader] extracting text from %s with tika", name)
	text, err := l.extractor.ExtractText(ctx, bytes.NewReader(data), name)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", source, err)
	}
	return text, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, string, error) {
	if !strings.HasPrefix(source, minioScheme) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", source, err)
		}
		return data, source, nil
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(source, minioScheme), "/")
	if !ok || bucket == "" || object == "" {
		return nil, "", fmt.Errorf("%w: malformed object source %q, want minio://bucket/object", model.ErrConfiguration, source)
	}
	if l.objects == nil {
		return nil, "", fmt.Errorf("%w: %s requested but minio is not configured", model.ErrConfiguration, source)
	}
	data, err := l.objects.ReadObject(ctx, bucket, object)
	if err != nil {
		return nil, "", err
	}
	return data, object, nil
}
