package genai

import (
	"context"

	"github.com/openai/openai-go"
)

// MockClient implements ClientInterface for tests. Responses are returned in
// order; once exhausted the last one repeats.
type MockClient struct {
	Responses []string
	Err       error
	Calls     [][]openai.ChatCompletionMessageParamUnion
	next      int
}

func (m *MockClient) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

func (m *MockClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[m.next]
	if m.next < len(m.Responses)-1 {
		m.next++
	}
	return resp, nil
}
