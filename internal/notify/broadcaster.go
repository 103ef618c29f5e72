package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"SpyCanvas/internal/config"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// broadcastQueue 待转发通知的缓冲上限，满了直接丢弃
const broadcastQueue = 256

// Broadcaster 把通知转发给外部实时推送服务（POST {base_url}/broadcast）。
// Publish 只入队，由后台 worker 逐条发送，外部服务变慢不会拖慢对局请求
type Broadcaster struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan broadcastRequest
	wg     sync.WaitGroup
}

type broadcastRequest struct {
	Topic   string                  `json:"topic"`
	Event   string                  `json:"event"`
	Payload interfaces.Notification `json:"payload"`
}

// NewBroadcaster 创建外部推送转发器并启动发送 worker，用完须 Close
func NewBroadcaster(cfg *config.RealtimeConfig, logger *logrus.Logger) *Broadcaster {
	return newBroadcaster(cfg, logger, broadcastQueue)
}

func newBroadcaster(cfg *config.RealtimeConfig, logger *logrus.Logger, size int) *Broadcaster {
	b := &Broadcaster{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpclient.NewHTTPClient(cfg, logger),
		logger:  logger,
		queue:   make(chan broadcastRequest, size),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Publish 实现 interfaces.Publisher：非阻塞入队，队列满或已关闭时丢弃
func (b *Broadcaster) Publish(_ context.Context, topic string, n interfaces.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- broadcastRequest{Topic: topic, Event: n.Kind, Payload: n}:
	default:
		b.logger.WithField("topic", topic).Warn("外部推送队列已满，丢弃通知")
	}
}

// Close 停止接收新通知，发送完队列中剩余的通知后返回
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Broadcaster) run() {
	defer b.wg.Done()
	for req := range b.queue {
		b.send(req)
	}
}

// send 单条转发，失败只记日志；超时由 httpclient 控制
func (b *Broadcaster) send(r broadcastRequest) {
	body, err := json.Marshal(r)
	if err != nil {
		b.logger.WithError(err).WithField("topic", r.Topic).Warn("序列化推送内容失败")
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, b.baseURL+"/broadcast", bytes.NewReader(body))
	if err != nil {
		b.logger.WithError(err).WithField("topic", r.Topic).Warn("构建推送请求失败")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.WithError(err).WithField("topic", r.Topic).Warn("推送外部实时服务失败")
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusMultipleChoices {
		b.logger.WithFields(logrus.Fields{
			"topic":  r.Topic,
			"status": resp.StatusCode,
		}).Warn("外部实时服务返回异常状态")
	}
}
