package caption

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log"
	"strings"
	"unicode/utf8"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// UseCase 图注的两种用途，分别对应固定的提示词与默认文案
type UseCase int

const (
	Accessibility UseCase = iota // 无障碍 alt text
	Engagement                   // 社交风格描述
)

const (
	// AccessibilityDefault 生成失败时 alt text 的默认文案
	AccessibilityDefault = "Image description not available"
	// EngagementDefault 生成失败时描述的默认文案
	EngagementDefault = "Another day, another photo! 📸"

	// maxLen 超过该长度截断为 497 + "..."
	maxLen = 500
)

const accessibilityPrompt = `Please describe this image in a concise way that would be helpful for someone using a screen reader.
Focus on the main subject, action, and important details. Keep it under 125 characters if possible.
Format as simple, descriptive text without technical jargon.`

const engagementPrompt = `Look at this image and write a fun, sassy, and engaging description that would make someone want to like and comment on this post.
Be creative, use emojis if appropriate, and keep it under 200 characters.
Make it feel personal and relatable, like something you'd see on a popular social media post.
Don't be too formal - be casual and entertaining!`

// Generator 视觉模型图注生成接口
// 成功与失败通过 error 区分，不靠返回值字符串判断
type Generator interface {
	Generate(ctx context.Context, img []byte, uc UseCase) (string, error)
}

// Default 返回对应用途的默认文案
func Default(uc UseCase) string {
	if uc == Engagement {
		return EngagementDefault
	}
	return AccessibilityDefault
}

// Prompt 返回对应用途的提示词模板
func Prompt(uc UseCase) string {
	if uc == Engagement {
		return engagementPrompt
	}
	return accessibilityPrompt
}

// Truncate 超长文本截断为 497 个字符 + "..."，总长恰好 500；不超长则原样返回
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// GenerateOrDefault 调用生成器并把所有失败（client 缺失、图片解码失败、
// 服务错误、空响应、panic）折叠成对应用途的默认文案，绝不向上抛错
func GenerateOrDefault(ctx context.Context, g Generator, img []byte, uc UseCase) (text string) {
	text = Default(uc)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("caption generator panic: %v", r)
			text = Default(uc)
		}
	}()

	if g == nil {
		return Default(uc)
	}
	if len(img) == 0 {
		log.Printf("caption: empty image data")
		return Default(uc)
	}
	// 远程调用前先本地校验图片能否解码
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		log.Printf("caption: decode image failed: %v", err)
		return Default(uc)
	}

	raw, err := g.Generate(ctx, img, uc)
	if err != nil {
		log.Printf("caption: generate failed: %v", err)
		return Default(uc)
	}
	out := strings.TrimSpace(raw)
	if out == "" {
		return Default(uc)
	}
	return Truncate(out)
}

// sniffMIME 根据图片内容返回 MIME 类型，供各 provider 构造请求
func sniffMIME(img []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", err
	}
	switch format {
	case "jpeg":
		return "image/jpeg", nil
	case "png":
		return "image/png", nil
	case "webp":
		return "image/webp", nil
	}
	return "", errors.New("unsupported image format: " + format)
}
