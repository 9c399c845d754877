package caption

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

const arkModel = "doubao-1-5-vision-pro-32k-250115"

// ArkGenerator 基于火山方舟视觉模型的图注生成器，作为 Gemini 的备选 provider
type ArkGenerator struct {
	client *arkruntime.Client
}

// NewArkGenerator 构造 Ark 客户端，API key 缺失时返回错误
func NewArkGenerator(apiKey string) (*ArkGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("ark api key is not set")
	}
	return &ArkGenerator{client: arkruntime.NewClientWithApiKey(apiKey)}, nil
}

func (g *ArkGenerator) Generate(ctx context.Context, img []byte, uc UseCase) (string, error) {
	mime, err := sniffMIME(img)
	if err != nil {
		return "", err
	}
	// Ark 的图片输入用 data URL
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)

	req := model.CreateChatCompletionRequest{
		Model: arkModel,
		Messages: []*model.ChatCompletionMessage{
			{
				Role: model.ChatMessageRoleUser,
				Content: &model.ChatCompletionMessageContent{
					ListValue: []*model.ChatCompletionMessageContentPart{
						{
							Type:     model.ChatCompletionMessageContentPartTypeImageURL,
							ImageURL: &model.ChatMessageImageURL{URL: dataURL},
						},
						{
							Type: model.ChatCompletionMessageContentPartTypeText,
							Text: Prompt(uc),
						},
					},
				},
			},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil ||
		resp.Choices[0].Message.Content.StringValue == nil {
		return "", errors.New("ark: empty chat completion response")
	}
	return *resp.Choices[0].Message.Content.StringValue, nil
}
