package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"runnerd/pkg/types"
)

// chatPayload is the body sent to a runner's /v1/chat/completions.
type chatPayload struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Seed        *int64              `json:"seed,omitempty"`
	Stream      bool                `json:"stream"`
}

// completionPayload is the body sent to a runner's /v1/completions.
type completionPayload struct {
	Model         string   `json:"model"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Stream        bool     `json:"stream"`
}

// BuildChatPayload validates a chat completion body and rewrites it for the
// runner pool's model.
func BuildChatPayload(body []byte, model string) ([]byte, error) {
	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequestError{msg: "invalid JSON body"}
	}
	if err := checkCommon(req.Model, model, req.Stream, req.MaxTokens, req.Temperature, req.TopP); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, badRequestError{msg: "messages is required"}
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return nil, badRequestError{msg: fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role)}
		}
	}
	return json.Marshal(chatPayload{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Seed:        req.Seed,
	})
}

// BuildCompletionPayload validates a text completion body and rewrites it for
// the runner pool's model.
func BuildCompletionPayload(body []byte, model string) ([]byte, error) {
	var req types.CompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequestError{msg: "invalid JSON body"}
	}
	if err := checkCommon(req.Model, model, req.Stream, req.MaxTokens, req.Temperature, req.TopP); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, badRequestError{msg: "prompt is required"}
	}
	if req.TopK < 0 {
		return nil, badRequestError{msg: "top_k must be >= 0"}
	}
	return json.Marshal(completionPayload{
		Model:         model,
		Prompt:        req.Prompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		Stop:          req.Stop,
		Seed:          req.Seed,
		RepeatPenalty: req.RepeatPenalty,
	})
}

func checkCommon(reqModel, model string, stream bool, maxTokens int, temperature, topP *float64) error {
	if reqModel != "" && reqModel != model {
		return badRequestError{msg: fmt.Sprintf("model not found: %q (serving %q)", reqModel, model), code: http.StatusNotFound}
	}
	if stream {
		return badRequestError{msg: "stream=true is not supported"}
	}
	if maxTokens < 0 {
		return badRequestError{msg: "max_tokens must be >= 0"}
	}
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return badRequestError{msg: "temperature must be between 0 and 2"}
	}
	if topP != nil && (*topP <= 0 || *topP > 1) {
		return badRequestError{msg: "top_p must be in (0, 1]"}
	}
	return nil
}
