package store

import (
	"log"
	"strconv"
	"time"

	"github.com/sihaoz826/LLM-Instagram-Clone/models"

	"github.com/go-redis/redis"
)

var Client *redis.Client

// 状态 hash 保留24小时，够前端轮询/SSE 补偿使用
const captionStatusTTL = 24 * time.Hour

func Init(cfg string) (err error) {
	Client = redis.NewClient(&redis.Options{
		Addr: cfg,
	})

	_, err = Client.Ping().Result()
	if err != nil {
		return err
	}
	return nil
}

func GetRedis() *redis.Client {
	return Client
}

func captionKey(userID, photoID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10) + ":photo:" + strconv.FormatUint(photoID, 10)
}

// InitCaptionStatus 上传开始时写入两个字段的初始状态
func InitCaptionStatus(userID, photoID uint64) error {
	key := captionKey(userID, photoID)
	fields := map[string]interface{}{
		"alt_text":    models.CaptionGenerating,
		"description": models.CaptionGenerating,
		"created_at":  time.Now().Unix(),
	}
	// HMSet 和 Expire 放进同一个 pipeline
	pipe := Client.Pipeline()
	pipe.HMSet(key, fields)
	pipe.Expire(key, captionStatusTTL)
	_, err := pipe.Exec()
	if err != nil {
		log.Printf("Failed to init caption status for photo %d: %v", photoID, err)
		return err
	}
	return nil
}

// SetCaptionStatus 写入两个字段的终态
func SetCaptionStatus(userID, photoID uint64, altState, descState string) error {
	key := captionKey(userID, photoID)
	fields := map[string]interface{}{
		"alt_text":    altState,
		"description": descState,
		"updated_at":  time.Now().Unix(),
	}
	pipe := Client.Pipeline()
	pipe.HMSet(key, fields)
	pipe.Expire(key, captionStatusTTL)
	_, err := pipe.Exec()
	if err != nil {
		log.Printf("Failed to store caption status for photo %d: %v", photoID, err)
		return err
	}
	return nil
}

// GetCaptionStatus 读取照片的图注生成状态，字段缺失时返回 pending
func GetCaptionStatus(userID, photoID uint64) (altState, descState string, err error) {
	hash, err := Client.HGetAll(captionKey(userID, photoID)).Result()
	if err != nil {
		return "", "", err
	}
	altState = hash["alt_text"]
	if altState == "" {
		altState = models.CaptionPending
	}
	descState = hash["description"]
	if descState == "" {
		descState = models.CaptionPending
	}
	return altState, descState, nil
}
