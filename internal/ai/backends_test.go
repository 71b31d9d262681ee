package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompleter_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "sys", req.Messages[0].Content)
		assert.Equal(t, "hello", req.Messages[1].Content)

		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAICompleter(srv.URL+"/v1/", "sk-test", "gpt-4o-mini", 0.2, srv.Client())
	out, err := c.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestOpenAICompleter_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAICompleter(srv.URL, "sk-bad", "m", 0, nil)
	_, err := c.Complete(context.Background(), "s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[401]")
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAICompleter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	out, err := NewOpenAICompleter(srv.URL, "k", "m", 0, nil).Complete(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Empty(t, out)
}

type fakeBedrock struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockCompleter_Success(t *testing.T) {
	fb := &fakeBedrock{body: `{"content":[{"type":"text","text":"part one "},{"type":"tool_use"},{"type":"text","text":"part two"}]}`}
	c := NewBedrockCompleter(fb, "", 0, 0.2)

	out, err := c.Complete(context.Background(), "sys", "review")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)

	assert.Equal(t, DefaultBedrockModel, aws.ToString(fb.input.ModelId))
	var req anthropicRequest
	require.NoError(t, json.Unmarshal(fb.input.Body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req.AnthropicVersion)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, "sys", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "review", req.Messages[0].Content)
}

func TestBedrockCompleter_Errors(t *testing.T) {
	_, err := NewBedrockCompleter(&fakeBedrock{err: errors.New("throttled")}, "m", 10, 0).Complete(context.Background(), "", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	_, err = NewBedrockCompleter(&fakeBedrock{body: "not json"}, "m", 10, 0).Complete(context.Background(), "", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
