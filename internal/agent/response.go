package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/metalagman/racefix/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrMalformedResponse means the provider answer held no usable JSON object.
	ErrMalformedResponse = errors.New("malformed agent response")
	// ErrEmptyContent means the provider answered without file content.
	ErrEmptyContent = errors.New("agent response has empty content")
)

// candidateSchema is the contract for a provider answer. Exec agents are validated against it too.
const candidateSchema = `{
  "type": "object",
  "properties": {
    "file": {"type": "string"},
    "content": {"type": "string"},
    "explanation": {"type": "string"}
  },
  "required": ["content"]
}`

var candidateSchemaLoader = gojsonschema.NewStringLoader(candidateSchema)

type fixResponse struct {
	File        string `json:"file"`
	Content     string `json:"content"`
	Explanation string `json:"explanation"`
}

// ParseCandidate extracts a candidate from a raw provider answer. A missing file
// falls back to the request's target file.
func ParseCandidate(raw string, req Request) (model.Candidate, error) {
	data, ok := ExtractJSON([]byte(raw))
	if !ok {
		return model.Candidate{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	result, err := gojsonschema.Validate(candidateSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return model.Candidate{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return model.Candidate{}, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	var resp fixResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.Candidate{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Content == "" {
		return model.Candidate{}, ErrEmptyContent
	}
	file := strings.TrimSpace(resp.File)
	if file == "" {
		file = req.TargetFile
	}
	return model.Candidate{
		ProducerID:  req.ProducerID,
		TargetFile:  file,
		Content:     resp.Content,
		Rationale:   resp.Explanation,
		Temperature: req.Temperature,
		Valid:       true,
	}, nil
}

// ExtractJSON returns the span from the first '{' to the last '}'.
func ExtractJSON(data []byte) ([]byte, bool) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start == -1 || end == -1 || start >= end {
		return nil, false
	}
	return data[start : end+1], true
}
