package controller

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/mysql"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/store"
	"github.com/sihaoz826/LLM-Instagram-Clone/logic"
	"github.com/sihaoz826/LLM-Instagram-Clone/models"
	"github.com/sihaoz826/LLM-Instagram-Clone/pkg/snowflake"
	"github.com/sihaoz826/LLM-Instagram-Clone/pkg/sse"
	"github.com/sihaoz826/LLM-Instagram-Clone/queue"
	"github.com/sihaoz826/LLM-Instagram-Clone/settings"
	"github.com/sihaoz826/LLM-Instagram-Clone/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// captionGen 进程级生成器，启动时注入一次；为 nil 时生成路径直接走默认文案
var captionGen caption.Generator

func SetGenerator(g caption.Generator) {
	captionGen = g
}

// 允许上传的图片扩展名
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadPhoto 上传照片
// 保存原图和缩略图，两路并发生成 alt text / 描述并按兜底策略落库；
// 生成失败绝不阻断上传，照片记录一定会写入
func UploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		ResponseErrorWithMsg(c, CodeInvalidParams, "file is required")
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExts[ext] {
		ResponseErrorWithMsg(c, CodeInvalidParams, "unsupported file type")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		ResponseError(c, CodeServerBusy)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		ResponseErrorWithMsg(c, CodeInvalidParams, "empty file")
		return
	}
	// 落盘前先确认能解码
	if _, _, err := util.DecodeImage(data); err != nil {
		ResponseErrorWithMsg(c, CodeInvalidParams, "invalid image")
		return
	}

	// user_id 可选，缺省按匿名用户0处理；给了就必须是合法数字
	var userID uint64
	if raw := c.PostForm("user_id"); raw != "" {
		userID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ResponseErrorWithMsg(c, CodeInvalidParams, "invalid user_id")
			return
		}
	}

	photoID, err := snowflake.GetID()
	if err != nil {
		ResponseError(c, CodeServerBusy)
		return
	}
	// 重命名存储，避免用户文件名冲突
	filename := uuid.New().String() + ext
	small, medium, err := util.SaveWithVariants(settings.Conf.UploadDir, filename, data)
	if err != nil {
		zap.L().Error("save upload failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	_ = store.InitCaptionStatus(userID, photoID)

	result := logic.ProcessUpload(c.Request.Context(), captionGen, data)
	altState, descState := logic.CaptionStates(result)
	_ = store.SetCaptionStatus(userID, photoID, altState, descState)

	photo := &models.Photo{
		PhotoID:     photoID,
		UserID:      userID,
		Filename:    filename,
		FilenameS:   small,
		FilenameM:   medium,
		AltText:     result.AltText,
		Description: result.Description,
	}
	if err := mysql.InsertPhoto(photo); err != nil {
		zap.L().Error("insert photo failed", zap.Uint64("photo_id", photoID), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	notifyCaptionDone(userID, photoID, altState, descState)

	ResponseSuccess(c, photo)
}

// GetPhoto 查询照片
func GetPhoto(c *gin.Context) {
	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	photo, err := mysql.GetPhoto(photoID)
	if err != nil {
		if err == mysql.ErrPhotoNotExist {
			ResponseError(c, CodePhotoNotExist)
			return
		}
		zap.L().Error("get photo failed", zap.Uint64("photo_id", photoID), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, photo)
}

// EditDescription 用户编辑配文
func EditDescription(c *gin.Context) {
	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	var fo models.EditDescriptionForm
	if err := c.ShouldBindJSON(&fo); err != nil {
		zap.L().Error("EditDescription with invalid param", zap.Error(err))
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			ResponseError(c, CodeInvalidParams)
			return
		}
		ResponseErrorWithMsg(c, CodeInvalidParams, removeTopStruct(errs.Translate(trans)))
		return
	}
	if err := mysql.UpdateDescription(photoID, fo.Description); err != nil {
		if err == mysql.ErrPhotoNotExist {
			ResponseError(c, CodePhotoNotExist)
			return
		}
		zap.L().Error("update description failed", zap.Uint64("photo_id", photoID), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, nil)
}

// GetCaptionStatus 查询图注生成状态
func GetCaptionStatus(c *gin.Context) {
	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	var userID uint64
	if raw := c.Query("user_id"); raw != "" {
		userID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ResponseErrorWithMsg(c, CodeInvalidParams, "invalid user_id")
			return
		}
	}
	altState, descState, err := store.GetCaptionStatus(userID, photoID)
	if err != nil {
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, gin.H{
		"photo_id":          photoID,
		"alt_text_state":    altState,
		"description_state": descState,
	})
}

// SubmitBackfill 把单张照片投递到补齐队列，重新生成图注
func SubmitBackfill(c *gin.Context) {
	photoID, err := strconv.ParseUint(c.Param("photo_id"), 10, 64)
	if err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	photo, err := mysql.GetPhoto(photoID)
	if err != nil {
		if err == mysql.ErrPhotoNotExist {
			ResponseError(c, CodePhotoNotExist)
			return
		}
		ResponseError(c, CodeServerBusy)
		return
	}
	if err := publishBackfillFn(photo, 5); err != nil {
		zap.L().Error("publish backfill failed", zap.Uint64("photo_id", photoID), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	c.JSON(202, gin.H{"photo_id": photoID, "status": "submitted"})
}

// BackfillDegraded 把 alt text 仍为占位文案的照片批量投递补齐
// 单次只取一批（上限见 dao），batch_size 是本批数量，不是全库待补齐总数
func BackfillDegraded(c *gin.Context) {
	photos, err := mysql.ListDegradedPhotos(0)
	if err != nil {
		zap.L().Error("list degraded photos failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	submitted := 0
	for i := range photos {
		// 批量任务低优先级，避免挤占上传后的即时补齐
		if err := publishBackfillFn(&photos[i], 1); err != nil {
			zap.L().Error("publish backfill failed",
				zap.Uint64("photo_id", photos[i].PhotoID), zap.Error(err))
			continue
		}
		submitted++
	}
	c.JSON(202, gin.H{"submitted": submitted, "batch_size": len(photos)})
}

// 便于测试替换
var publishBackfillFn = publishBackfill

func publishBackfill(photo *models.Photo, priority int) error {
	q, err := queue.GetBackfillQueue()
	if err != nil {
		return err
	}
	job := models.BackfillJob{
		PhotoID:  photo.PhotoID,
		UserID:   photo.UserID,
		Filename: photo.Filename,
		Priority: priority,
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.PublishBackfill(b, job.Priority)
}

// ListUserPhotos 按用户分页查询照片
func ListUserPhotos(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	photos, err := mysql.ListUserPhotos(userID, offset, pageSize)
	if err != nil {
		zap.L().Error("list user photos failed", zap.Uint64("user_id", userID), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, gin.H{
		"photos":    photos,
		"offset":    offset,
		"page_size": pageSize,
	})
}

// PhotoReport 图注覆盖率报告：缺描述/缺alt text/占位alt text的数量
func PhotoReport(c *gin.Context) {
	report, err := mysql.PhotoReport()
	if err != nil {
		zap.L().Error("photo report failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, report)
}

// notifyCaptionDone 通过 SSE 推送生成结果状态
func notifyCaptionDone(userID, photoID uint64, altState, descState string) {
	payload := struct {
		Code      int    `json:"code"`
		UserID    uint64 `json:"user_id"`
		PhotoID   uint64 `json:"photo_id"`
		AltState  string `json:"alt_text_state"`
		DescState string `json:"description_state"`
	}{
		Code:      200,
		UserID:    userID,
		PhotoID:   photoID,
		AltState:  altState,
		DescState: descState,
	}
	if hub := sse.GetHub(); hub != nil {
		if b, err := json.Marshal(payload); err == nil {
			hub.PublishTopic(strconv.FormatUint(userID, 10), b)
		}
	}
}
