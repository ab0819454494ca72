package domain

import (
	"encoding/json"
	"fmt"
)

const (
	chunkObject      = "chat.completion.chunk"
	finishReasonStop = "stop"

	// DoneLine is written after the last chunk of every finished job.
	DoneLine = "data: [DONE]\n"
)

type chunkPayload struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content string `json:"content,omitempty"`
}

// EncodeChunk renders a chunk as an SSE data line.
func EncodeChunk(chunk StreamChunk) (string, error) {
	var finishReason *string
	if chunk.Terminal {
		reason := finishReasonStop
		finishReason = &reason
	}

	data, err := json.Marshal(chunkPayload{
		ID:      chunk.ID,
		Object:  chunkObject,
		Created: chunk.Created,
		Model:   chunk.Model,
		Choices: []chunkChoice{{
			Index:        0,
			Delta:        chunkDelta{Content: chunk.Delta},
			FinishReason: finishReason,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chunk: %w", err)
	}

	return "data: " + string(data) + "\n", nil
}
