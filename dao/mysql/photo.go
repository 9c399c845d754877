package mysql

import (
	"database/sql"
	"errors"
	"time"

	"github.com/sihaoz826/LLM-Instagram-Clone/models"
)

var ErrPhotoNotExist = errors.New("photo not exist")

// InsertPhoto 插入一条照片记录
func InsertPhoto(p *models.Photo) error {
	query := `INSERT INTO t_photos (photo_id, user_id, filename, filename_s, filename_m, alt_text, description, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := Db.Exec(query, p.PhotoID, p.UserID, p.Filename, p.FilenameS, p.FilenameM,
		p.AltText, p.Description, now, now)
	return err
}

// GetPhoto 根据照片ID查询
func GetPhoto(photoID uint64) (*models.Photo, error) {
	photo := &models.Photo{}
	sqlStr := `SELECT photo_id, user_id, filename, filename_s, filename_m, alt_text, description, created_at, updated_at
	           FROM t_photos WHERE photo_id = ?`
	err := Db.Get(photo, sqlStr, photoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPhotoNotExist
		}
		return nil, err
	}
	return photo, nil
}

// UpdateDescription 用户手动编辑描述
func UpdateDescription(photoID uint64, description string) error {
	sqlStr := "UPDATE t_photos SET description = ?, updated_at = NOW() WHERE photo_id = ?"
	result, err := Db.Exec(sqlStr, description, photoID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPhotoNotExist
	}
	return nil
}

// UpdateCaptions 补齐任务回写生成结果
// 只做改进不做覆盖：alt text 仅在新值不是占位文案时更新，
// description 仅在原值为空且新值非空时更新，不改动用户已写的配文
func UpdateCaptions(photoID uint64, r models.CaptionResult) error {
	if r.AltText != models.PlaceholderAltText {
		sqlStr := "UPDATE t_photos SET alt_text = ?, updated_at = NOW() WHERE photo_id = ?"
		if _, err := Db.Exec(sqlStr, r.AltText, photoID); err != nil {
			return err
		}
	}
	if r.Description != nil {
		sqlStr := "UPDATE t_photos SET description = ?, updated_at = NOW() WHERE photo_id = ? AND description IS NULL"
		if _, err := Db.Exec(sqlStr, *r.Description, photoID); err != nil {
			return err
		}
	}
	return nil
}

// ListUserPhotos 按用户分页查询照片，最新的在前
func ListUserPhotos(userID uint64, offset, pageSize int) ([]models.Photo, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	if offset < 0 {
		offset = 0
	}
	photos := make([]models.Photo, 0, pageSize)
	sqlStr := `SELECT photo_id, user_id, filename, filename_s, filename_m, alt_text, description, created_at, updated_at
	           FROM t_photos WHERE user_id = ? ORDER BY photo_id DESC LIMIT ? OFFSET ?`
	err := Db.Select(&photos, sqlStr, userID, pageSize, offset)
	return photos, err
}

// PhotoReport 统计缺描述、缺alt text、占位alt text的照片数量
func PhotoReport() (*models.PhotoReport, error) {
	report := &models.PhotoReport{}
	sqlStr := `SELECT COUNT(*) AS total,
	           COALESCE(SUM(description IS NULL OR description = ''), 0) AS missing_description,
	           COALESCE(SUM(alt_text = ''), 0) AS missing_alt_text,
	           COALESCE(SUM(alt_text = ?), 0) AS degraded_alt_text
	           FROM t_photos`
	err := Db.Get(report, sqlStr, models.PlaceholderAltText)
	return report, err
}

// ListDegradedPhotos 查询 alt text 仍为占位文案的照片，补齐任务用
func ListDegradedPhotos(limit int) ([]models.Photo, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	photos := make([]models.Photo, 0, limit)
	sqlStr := `SELECT photo_id, user_id, filename, filename_s, filename_m, alt_text, description, created_at, updated_at
	           FROM t_photos WHERE alt_text = ? ORDER BY photo_id ASC LIMIT ?`
	err := Db.Select(&photos, sqlStr, models.PlaceholderAltText, limit)
	return photos, err
}
