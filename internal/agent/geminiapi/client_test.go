package geminiapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), Config{APIKey: "k"}, nil)
	assert.ErrorContains(t, err, "model")

	_, err = NewClient(context.Background(), Config{Model: "gemini-2.0-flash"}, nil)
	assert.ErrorContains(t, err, "api key")
}

func TestNewClient_BuildsWithKey(t *testing.T) {
	c, err := NewClient(context.Background(), Config{Model: "gemini-2.0-flash", APIKey: "k", BaseURL: "http://127.0.0.1:1/"}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, c)
}
