package logic

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/models"
)

// stubGen 按用途返回固定结果
type stubGen struct {
	alt     string
	altErr  error
	desc    string
	descErr error
}

func (s stubGen) Generate(ctx context.Context, img []byte, uc caption.UseCase) (string, error) {
	if uc == caption.Accessibility {
		return s.alt, s.altErr
	}
	return s.desc, s.descErr
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcessUploadSuccess(t *testing.T) {
	g := stubGen{
		alt:  "A beautiful sunset over mountains",
		desc: "Golden hour did NOT come to play today 🌄✨",
	}
	got := ProcessUpload(context.Background(), g, testImage(t))

	if got.AltText != "A beautiful sunset over mountains" {
		t.Errorf("alt text = %q, want verbatim model output", got.AltText)
	}
	if got.Description == nil || *got.Description != g.desc {
		t.Errorf("description = %v, want %q", got.Description, g.desc)
	}
}

func TestProcessUploadNoGenerator(t *testing.T) {
	got := ProcessUpload(context.Background(), nil, testImage(t))

	if got.AltText != models.PlaceholderAltText {
		t.Errorf("alt text = %q, want %q", got.AltText, models.PlaceholderAltText)
	}
	if got.Description != nil {
		t.Errorf("description = %q, want nil", *got.Description)
	}
}

func TestProcessUploadGeneratorReturnsOwnDefault(t *testing.T) {
	// 生成器"成功"但给出自身默认文案，等同失败
	g := stubGen{
		alt:  caption.AccessibilityDefault,
		desc: caption.EngagementDefault,
	}
	got := ProcessUpload(context.Background(), g, testImage(t))

	if got.AltText != models.PlaceholderAltText {
		t.Errorf("alt text = %q, want second-tier placeholder", got.AltText)
	}
	if got.Description != nil {
		t.Errorf("description = %q, want nil (yield to user)", *got.Description)
	}
}

func TestProcessUploadBothFail(t *testing.T) {
	g := stubGen{
		altErr:  errors.New("service unavailable"),
		descErr: errors.New("service unavailable"),
	}
	got := ProcessUpload(context.Background(), g, testImage(t))

	if got.AltText != models.PlaceholderAltText {
		t.Errorf("alt text = %q, want %q", got.AltText, models.PlaceholderAltText)
	}
	if got.Description != nil {
		t.Errorf("description should be nil when engagement generation fails")
	}
}

func TestProcessUploadIndependentFailures(t *testing.T) {
	// alt 失败不影响描述，反之亦然
	g := stubGen{
		altErr: errors.New("timeout"),
		desc:   "This photo understood the assignment 💅",
	}
	got := ProcessUpload(context.Background(), g, testImage(t))

	if got.AltText != models.PlaceholderAltText {
		t.Errorf("alt text = %q, want placeholder", got.AltText)
	}
	if got.Description == nil || *got.Description != g.desc {
		t.Errorf("description = %v, want generated text", got.Description)
	}
}

func TestCaptionStates(t *testing.T) {
	desc := "generated"
	tests := []struct {
		name     string
		r        models.CaptionResult
		wantAlt  string
		wantDesc string
	}{
		{"both succeeded", models.CaptionResult{AltText: "a cat", Description: &desc}, models.CaptionSucceeded, models.CaptionSucceeded},
		{"alt degraded", models.CaptionResult{AltText: models.PlaceholderAltText, Description: &desc}, models.CaptionDegraded, models.CaptionSucceeded},
		{"desc empty", models.CaptionResult{AltText: "a cat", Description: nil}, models.CaptionSucceeded, models.CaptionEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			altState, descState := CaptionStates(tt.r)
			if altState != tt.wantAlt || descState != tt.wantDesc {
				t.Errorf("CaptionStates() = (%s, %s), want (%s, %s)", altState, descState, tt.wantAlt, tt.wantDesc)
			}
		})
	}
}
