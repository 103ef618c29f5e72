package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"SpyCanvas/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRepository 对局事件流水
type EventRepository interface {
	// Append 写入一条事件，payload 序列化为 JSON
	Append(ctx context.Context, matchID, kind, actorID string, payload map[string]interface{}) error
	// List 按时间正序返回对局事件，limit<=0 表示不限
	List(ctx context.Context, matchID string, limit int) ([]model.MatchEvent, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, matchID, kind, actorID string, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w, kind: %s", err, kind)
	}
	ev := &model.MatchEvent{
		MatchID: matchID,
		Kind:    kind,
		ActorID: actorID,
		Payload: datatypes.JSON(raw),
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("保存事件失败: %w, match_id: %s", err, matchID)
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, matchID string, limit int) ([]model.MatchEvent, error) {
	var list []model.MatchEvent
	q := r.db.WithContext(ctx).Where("match_id = ?", matchID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
