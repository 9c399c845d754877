package logic

import (
	"context"
	"sync"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/models"

	"go.uber.org/zap"
)

// ProcessUpload 为一次上传生成 alt text 和描述
// 两路生成互不依赖，并发调用，合并后返回；任何失败都不会向上抛错：
//   - alt text：生成失败或拿到生成器自身的默认文案时，退到占位文案，保证非空
//   - 描述：生成失败或拿到默认文案时置空，把配文的决定权还给用户
func ProcessUpload(ctx context.Context, g caption.Generator, img []byte) models.CaptionResult {
	var (
		altRaw  string
		descRaw string
		wg      sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		altRaw = caption.GenerateOrDefault(ctx, g, img, caption.Accessibility)
	}()
	go func() {
		defer wg.Done()
		descRaw = caption.GenerateOrDefault(ctx, g, img, caption.Engagement)
	}()
	wg.Wait()

	result := models.CaptionResult{AltText: altRaw}
	if altRaw == caption.AccessibilityDefault {
		zap.L().Warn("alt text generation degraded to placeholder")
		result.AltText = models.PlaceholderAltText
	}

	// 模型恰好返回默认文案与真实失败无法区分，这里沿用同一处理
	if descRaw != caption.EngagementDefault {
		result.Description = &descRaw
	}
	return result
}

// CaptionStates 把生成结果映射为每个字段的终态，用于状态存储与通知
func CaptionStates(r models.CaptionResult) (altState, descState string) {
	altState = models.CaptionSucceeded
	if r.AltText == models.PlaceholderAltText {
		altState = models.CaptionDegraded
	}
	descState = models.CaptionSucceeded
	if r.Description == nil {
		descState = models.CaptionEmpty
	}
	return altState, descState
}
