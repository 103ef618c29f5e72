package interfaces

import (
	"context"
	"fmt"
	"time"
)

// 通知类型
const (
	EventPhaseChange    = "phase-change"
	EventReadyUpdate    = "ready-update"
	EventProposalUpdate = "proposal-update"
	EventVoteUpdate     = "vote-update"
	EventRoundUpdate    = "round-update"
	EventSpySignal      = "spy-signal"
	EventPlayerLeft     = "player-left"
	EventMatchCancelled = "match-cancelled"
	EventMatchFound     = "match-found"
	EventMatchRated     = "match-rated"
)

// Notification "状态已变化"通知，客户端收到后重新拉取对局；不携带任何机密
type Notification struct {
	Kind    string                 `json:"kind"`
	MatchID string                 `json:"match_id"`
	ActorID string                 `json:"actor_id,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	At      time.Time              `json:"at"`
}

// Publisher 按主题尽力投递通知（至多一次），失败不影响已提交的状态
type Publisher interface {
	Publish(ctx context.Context, topic string, n Notification)
}

// MatchTopic 对局主题
func MatchTopic(matchID string) string { return fmt.Sprintf("match:%s", matchID) }

// PlayerTopic 玩家主题
func PlayerTopic(playerID string) string { return fmt.Sprintf("player:%s", playerID) }
