package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/mysql"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/store"
	"github.com/sihaoz826/LLM-Instagram-Clone/models"
	"github.com/sihaoz826/LLM-Instagram-Clone/pkg/snowflake"
	"github.com/sihaoz826/LLM-Instagram-Clone/settings"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// failGen 两路生成都失败
type failGen struct{}

func (failGen) Generate(ctx context.Context, img []byte, uc caption.UseCase) (string, error) {
	return "", errors.New("model unavailable")
}

// setupUploadEnv 用 sqlmock 顶替 MySQL、miniredis 顶替 Redis，上传走完整 handler 路径
func setupUploadEnv(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mysql.Db = sqlx.NewDb(db, "mysql")
	t.Cleanup(func() { mysql.Db.Close() })

	mr := miniredis.RunT(t)
	if err := store.Init(mr.Addr()); err != nil {
		t.Fatalf("init store: %v", err)
	}

	if err := snowflake.Init(1); err != nil {
		t.Fatalf("init snowflake: %v", err)
	}
	settings.Conf.UploadDir = t.TempDir()
	return mock
}

// multipartImage 构造带一张可解码 png 的 multipart 请求体
func multipartImage(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	if err := png.Encode(fw, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func uploadRouter() *gin.Engine {
	r := gin.New()
	r.POST("/photos", UploadPhoto)
	return r
}

func TestUploadPhotoPersistsWhenGenerationFails(t *testing.T) {
	mock := setupUploadEnv(t)
	SetGenerator(failGen{})
	t.Cleanup(func() { SetGenerator(nil) })

	mock.ExpectExec("INSERT INTO t_photos").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.PlaceholderAltText, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, contentType := multipartImage(t, "sunset.png", map[string]string{"user_id": "7"})
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	uploadRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Code int `json:"code"`
		Data struct {
			PhotoID     uint64  `json:"photo_id"`
			UserID      uint64  `json:"user_id"`
			AltText     string  `json:"alt_text"`
			Description *string `json:"description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != int(CodeSuccess) {
		t.Errorf("code = %d, want %d", resp.Code, CodeSuccess)
	}
	if resp.Data.AltText != models.PlaceholderAltText {
		t.Errorf("alt text = %q, want %q", resp.Data.AltText, models.PlaceholderAltText)
	}
	if resp.Data.Description != nil {
		t.Errorf("description = %q, want null", *resp.Data.Description)
	}
	if resp.Data.UserID != 7 {
		t.Errorf("user_id = %d, want 7", resp.Data.UserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("photo was not persisted: %v", err)
	}
}

func TestUploadPhotoRejectsBadUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body, contentType := multipartImage(t, "cat.png", map[string]string{"user_id": "abc"})
	req := httptest.NewRequest(http.MethodPost, "/photos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	uploadRouter().ServeHTTP(w, req)

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != int(CodeInvalidParams) {
		t.Errorf("code = %d, want %d", resp.Code, CodeInvalidParams)
	}
}

func TestGetCaptionStatusRejectsBadUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/photos/:photo_id/captions", GetCaptionStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/1/captions?user_id=abc", nil))

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != int(CodeInvalidParams) {
		t.Errorf("code = %d, want %d", resp.Code, CodeInvalidParams)
	}
}

func TestBackfillDegradedReportsBatch(t *testing.T) {
	mock := setupUploadEnv(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"photo_id", "user_id", "filename", "filename_s", "filename_m",
		"alt_text", "description", "created_at", "updated_at"}).
		AddRow(1, 7, "a.jpg", "a_s.jpg", "a_m.jpg", models.PlaceholderAltText, nil, now, now).
		AddRow(2, 7, "b.jpg", "b_s.jpg", "b_m.jpg", models.PlaceholderAltText, nil, now, now)
	mock.ExpectQuery("FROM t_photos WHERE alt_text").WillReturnRows(rows)

	var published []uint64
	old := publishBackfillFn
	publishBackfillFn = func(p *models.Photo, priority int) error {
		published = append(published, p.PhotoID)
		return nil
	}
	t.Cleanup(func() { publishBackfillFn = old })

	r := gin.New()
	r.POST("/photos/backfill", BackfillDegraded)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/photos/backfill", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["submitted"] != 2 || resp["batch_size"] != 2 {
		t.Errorf("resp = %v, want submitted=2 batch_size=2", resp)
	}
	if _, ok := resp["total"]; ok {
		t.Errorf("response carries a total field, batch count must not masquerade as a global count")
	}
	if len(published) != 2 {
		t.Errorf("published %d jobs, want 2", len(published))
	}
}
