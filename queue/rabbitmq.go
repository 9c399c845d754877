package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/sihaoz826/LLM-Instagram-Clone/caption"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/mysql"
	"github.com/sihaoz826/LLM-Instagram-Clone/dao/store"
	"github.com/sihaoz826/LLM-Instagram-Clone/logic"
	"github.com/sihaoz826/LLM-Instagram-Clone/models"
	"github.com/sihaoz826/LLM-Instagram-Clone/pkg/sse"
	"github.com/sihaoz826/LLM-Instagram-Clone/util"

	"github.com/streadway/amqp"
)

// BackfillQueue 图注补齐队列接口
type BackfillQueue interface {
	PublishBackfill([]byte, int) error
	ConsumeBackfill() error
	Close() error
}

var (
	backfillOnce     sync.Once
	backfillInstance BackfillQueue
	backfillInitErr  error
)

// InitBackfillQueue 单例初始化补齐队列（首次调用生效）
// gen 为消费端使用的图注生成器，uploadDir 为已保存图片的目录
func InitBackfillQueue(dsn string, gen caption.Generator, uploadDir string) error {
	backfillOnce.Do(func() {
		inst, err := newBackfillAMQPQueue(dsn, gen, uploadDir)
		if err != nil {
			backfillInitErr = err
			log.Printf("failed to init backfill AMQP queue: %v", err)
			return
		}
		backfillInstance = inst
	})
	return backfillInitErr
}

// GetBackfillQueue 获取补齐队列实例
func GetBackfillQueue() (BackfillQueue, error) {
	if backfillInstance == nil {
		if backfillInitErr != nil {
			return nil, backfillInitErr
		}
		return nil, errors.New("backfill queue not initialized; call InitBackfillQueue")
	}
	return backfillInstance, nil
}

// --- AMQP 实现 ---
type backfillAMQPQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	gen       caption.Generator
	uploadDir string
}

func newBackfillAMQPQueue(dsn string, gen caption.Generator, uploadDir string) (BackfillQueue, error) {
	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// 补齐任务专用死信交换机和队列
	dlxName := "caption_dlq_exchange"
	dlqName := "caption_dlq"

	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(dlqName, dlqName, dlxName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlxName,
		"x-dead-letter-routing-key": dlqName,
		"x-max-priority":            10,
	}

	q, err := ch.QueueDeclare(
		"caption_backfill_tasks",
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	// 补齐任务会打外部模型接口，并发压小一点
	_ = ch.Qos(5, 0, false)

	return &backfillAMQPQueue{
		conn:      conn,
		ch:        ch,
		queueName: q.Name,
		gen:       gen,
		uploadDir: uploadDir,
	}, nil
}

// PublishBackfill 发布补齐任务
func (q *backfillAMQPQueue) PublishBackfill(b []byte, priority int) error {
	return q.ch.Publish(
		"", q.queueName, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         b,
			DeliveryMode: amqp.Persistent,
			Priority:     uint8(priority),
		},
	)
}

// publishWithHeaders 带header发布（用于重试）
func (q *backfillAMQPQueue) publishWithHeaders(b []byte, headers amqp.Table) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         b,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Priority:     5,
	}
	return q.ch.Publish("", q.queueName, false, false, msg)
}

// attemptsFromHeaders 读取 x-attempts 重试计数，类型随 broker 实现而异
func attemptsFromHeaders(headers amqp.Table) int {
	h, ok := headers["x-attempts"]
	if !ok {
		return 0
	}
	switch v := h.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// ConsumeBackfill 消费补齐任务
// 文件缺失等永久错误直接进DLQ；存储类临时错误最多重试3次
func (q *backfillAMQPQueue) ConsumeBackfill() error {
	deliveries, err := q.ch.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	concurrency := 5
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for d := range deliveries {
		sem <- struct{}{}
		wg.Add(1)

		go func(del amqp.Delivery) {
			defer func() { <-sem; wg.Done() }()

			var job models.BackfillJob
			if err := json.Unmarshal(del.Body, &job); err != nil {
				log.Printf("Invalid backfill payload: %v", err)
				_ = del.Nack(false, false) // 进入DLQ
				return
			}
			photoIDStr := strconv.FormatUint(job.PhotoID, 10)

			// 读取已保存的原图；文件缺失是永久错误
			img, err := util.ReadUpload(q.uploadDir, job.Filename)
			if err != nil {
				if os.IsNotExist(err) {
					log.Printf("Backfill image missing, photo id: %s: %v", photoIDStr, err)
					_ = del.Nack(false, false)
					return
				}
				log.Printf("Failed to read backfill image, photo id: %s: %v", photoIDStr, err)
				_ = q.retryOrDrop(del, photoIDStr)
				return
			}

			// 生成本身从不报错，失败折叠成占位/留空
			result := logic.ProcessUpload(context.Background(), q.gen, img)

			if err := mysql.UpdateCaptions(job.PhotoID, result); err != nil {
				log.Printf("Failed to update captions, photo id: %s: %v", photoIDStr, err)
				_ = q.retryOrDrop(del, photoIDStr)
				return
			}

			altState, descState := logic.CaptionStates(result)
			_ = store.SetCaptionStatus(job.UserID, job.PhotoID, altState, descState)

			// SSE通知
			payload := struct {
				Code        int    `json:"code"`
				UserID      uint64 `json:"user_id"`
				PhotoID     uint64 `json:"photo_id"`
				AltState    string `json:"alt_text_state"`
				DescState   string `json:"description_state"`
				AltText     string `json:"alt_text"`
				Description string `json:"description,omitempty"`
			}{
				Code:      200,
				UserID:    job.UserID,
				PhotoID:   job.PhotoID,
				AltState:  altState,
				DescState: descState,
				AltText:   result.AltText,
			}
			if result.Description != nil {
				payload.Description = *result.Description
			}
			if hub := sse.GetHub(); hub != nil {
				if b, err := json.Marshal(payload); err == nil {
					hub.PublishTopic(strconv.FormatUint(job.UserID, 10), b)
				}
			}

			_ = del.Ack(false)
			log.Printf("Backfill task completed, photo id: %s", photoIDStr)
		}(d)
	}

	wg.Wait()
	return nil
}

// retryOrDrop 临时错误重试，超过3次丢进DLQ
func (q *backfillAMQPQueue) retryOrDrop(del amqp.Delivery, photoIDStr string) error {
	attempts := attemptsFromHeaders(del.Headers)
	maxRetries := 3
	if attempts >= maxRetries {
		log.Printf("Backfill task exceeded retries, sending to DLQ, photo id: %s", photoIDStr)
		return del.Nack(false, false)
	}

	newHeaders := amqp.Table{"x-attempts": attempts + 1}
	for k, v := range del.Headers {
		if k != "x-attempts" {
			newHeaders[k] = v
		}
	}
	if err := q.publishWithHeaders(del.Body, newHeaders); err != nil {
		log.Printf("Failed to republish backfill message, photo id: %s: %v", photoIDStr, err)
		return del.Nack(false, false)
	}
	log.Printf("Requeued backfill message for retry #%d, photo id: %s", attempts+1, photoIDStr)
	return del.Ack(false)
}

func (q *backfillAMQPQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
