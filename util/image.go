package util

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// 缩略图宽度，与展示页使用的两档尺寸对应
const (
	SmallWidth  = 400
	MediumWidth = 800
)

// DecodeImage 解码图片字节，返回图像和格式名（jpeg/png/webp）
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image failed: %w", err)
	}
	return img, format, nil
}

// ResizeToWidth 等比缩放到指定宽度，原图不超宽时原样返回
func ResizeToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() <= width {
		return src
	}
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// VariantName 缩略图文件名：xxx.jpg -> xxx_s.jpg
func VariantName(filename, suffix string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + suffix + ext
}

// variantName 按原图格式决定缩略图文件名
// webp 缩略图会转码成 jpeg，扩展名跟着内容走，避免静态服务按 webp 返回 jpeg 字节
func variantName(filename, suffix, format string) string {
	name := VariantName(filename, suffix)
	if format == "webp" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}
	return name
}

// SaveWithVariants 保存原图并生成 _s/_m 两档缩略图，返回缩略图文件名
func SaveWithVariants(dir, filename string, data []byte) (small, medium string, err error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir failed: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return "", "", fmt.Errorf("save original failed: %w", err)
	}

	small = variantName(filename, "_s", format)
	medium = variantName(filename, "_m", format)
	if err := saveResized(filepath.Join(dir, small), img, format, SmallWidth); err != nil {
		return "", "", err
	}
	if err := saveResized(filepath.Join(dir, medium), img, format, MediumWidth); err != nil {
		return "", "", err
	}
	return small, medium, nil
}

func saveResized(path string, img image.Image, format string, width int) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create variant file failed: %w", err)
	}
	defer out.Close()

	resized := ResizeToWidth(img, width)
	switch format {
	case "png":
		err = png.Encode(out, resized)
	default:
		// webp 没有标准编码器，缩略图统一转 jpeg
		err = jpeg.Encode(out, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return fmt.Errorf("encode variant failed: %w", err)
	}
	return nil
}

// ReadUpload 读取已保存的上传文件，文件缺失或为空按生成失败处理（由调用方兜底）
func ReadUpload(dir, filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty upload file: " + filename)
	}
	return data, nil
}
