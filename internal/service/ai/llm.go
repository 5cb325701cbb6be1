package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/markdave123/contexta/backend/internal/config"
	"github.com/markdave123/contexta/backend/internal/model/chat"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
)

// Completer produces one completion for an assembled context. The model
// runtime behind it is opaque; callers only see text or an error.
type Completer interface {
	Complete(ctx context.Context, pc prompt.Context) (string, error)
}

// Streamer is implemented by completers that can additionally emit the
// completion incrementally.
type Streamer interface {
	Stream(ctx context.Context, pc prompt.Context) (*schema.StreamReader[*schema.Message], error)
}

// Service is the Ark-backed completer.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
}

// NewService creates the model client from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel, cfg: cfg}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Complete sends the assembled context to the model and returns the reply
// text.
func (s *Service) Complete(ctx context.Context, pc prompt.Context) (string, error) {
	response, err := s.chatModel.Generate(ctx, toSchemaMessages(pc))
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	log.Printf("[ai] generated response for session=%s, length=%d", pc.SessionID, len(response.Content))
	return response.Content, nil
}

// Stream returns the model reply as a chunk stream.
func (s *Service) Stream(ctx context.Context, pc prompt.Context) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chatModel.Stream(ctx, toSchemaMessages(pc))
	if err != nil {
		return nil, fmt.Errorf("failed to stream model output: %w", err)
	}
	return stream, nil
}

func toSchemaMessages(pc prompt.Context) []*schema.Message {
	messages := make([]*schema.Message, 0, len(pc.Messages))
	for _, m := range pc.Messages {
		switch m.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(m.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}
	return messages
}
