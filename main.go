package main

import (
	"context"
	"log"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/controller"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/mysql"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/store"
	"github.com/sihaoz826/LLM-Instagram-Clone/pkg/snowflake"
	sse "github.com/sihaoz826/LLM-Instagram-Clone/pkg/sse"
	"github.com/sihaoz826/LLM-Instagram-Clone/queue"
	"github.com/sihaoz826/LLM-Instagram-Clone/settings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// newGenerator 按配置构造图注生成器
// API key 缺失不是致命错误：返回 nil，生成路径直接降级到默认文案
func newGenerator(ctx context.Context) caption.Generator {
	switch settings.Conf.CaptionProvider {
	case "ark":
		g, err := caption.NewArkGenerator(settings.Conf.ArkAPIKey)
		if err != nil {
			log.Printf("ark generator unavailable, captions degrade to defaults: %v", err)
			return nil
		}
		return g
	default:
		g, err := caption.NewGeminiGenerator(ctx, settings.Conf.GeminiAPIKey)
		if err != nil {
			log.Printf("gemini generator unavailable, captions degrade to defaults: %v", err)
			return nil
		}
		return g
	}
}

func main() {
	if err := settings.Init(); err != nil {
		log.Fatalf("Failed to init settings: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := mysql.Init(settings.Conf.MySQLDSN); err != nil {
		log.Fatalf("Failed to init MySQL: %v", err)
	}
	defer mysql.Close()

	if err := store.Init(settings.Conf.RedisAddr); err != nil {
		log.Fatalf("Failed to init Redis: %v", err)
	}

	//初始化雪花算法
	if err := snowflake.Init(settings.Conf.MachineID); err != nil {
		log.Fatalf("Failed to init Snowflake: %v", err)
	}

	if err := controller.InitTrans("zh"); err != nil {
		log.Fatalf("Failed to init validator trans: %v", err)
	}

	gen := newGenerator(context.Background())
	controller.SetGenerator(gen)

	// 初始化单例补齐队列
	if err := queue.InitBackfillQueue(settings.Conf.AMQPDSN, gen, settings.Conf.UploadDir); err != nil {
		log.Fatalf("Failed to init backfill queue: %v", err)
	}
	backfillQueue, err := queue.GetBackfillQueue()
	if err != nil {
		log.Fatalf("Failed to get backfill queue instance: %v", err)
	}
	defer backfillQueue.Close()
	go func() {
		if err := backfillQueue.ConsumeBackfill(); err != nil {
			log.Fatalf("backfill consume failed: %v", err)
		}
	}()

	r := gin.Default()

	// 初始化并启动 SSE hub
	sseHub := sse.NewHub()
	sse.SetDefaultHub(sseHub)
	go sseHub.Run()

	r.GET("/events", sse.ServeSSE)

	r.Static("/uploads", settings.Conf.UploadDir)

	r.POST("/photos", controller.UploadPhoto)
	r.GET("/photos/report", controller.PhotoReport)
	r.POST("/photos/backfill", controller.BackfillDegraded)
	r.GET("/photos/:photo_id", controller.GetPhoto)
	r.PUT("/photos/:photo_id/description", controller.EditDescription)
	r.GET("/photos/:photo_id/captions", controller.GetCaptionStatus)
	r.POST("/photos/:photo_id/captions", controller.SubmitBackfill)
	r.GET("/users/:user_id/photos", controller.ListUserPhotos)

	r.Run(settings.Conf.Addr)
}
