package pipeline

import (
	"fmt"

	"rag-assistant-go/internal/model"
)

// SplitText cuts text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one. The last window is clipped
// to the end of the text and splitting stops there, so no chunk is contained
// entirely in its predecessor. Empty text yields no chunks.
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", model.ErrConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", model.ErrConfiguration, chunkSize, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	step := chunkSize - overlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
