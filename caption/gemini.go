package caption

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiGenerator 基于 Gemini 视觉模型的图注生成器
// client 在启动时构造一次注入，不在每次调用里读环境变量
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator 构造 Gemini 客户端，API key 缺失或构造失败时返回错误
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: client}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, img []byte, uc UseCase) (string, error) {
	mime, err := sniffMIME(img)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(img, mime),
		genai.NewPartFromText(Prompt(uc)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", errors.New("genai: empty generate response")
	}
	return result.Text(), nil
}
