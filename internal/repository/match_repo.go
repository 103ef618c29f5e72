package repository

import (
	"context"
	"time"

	"SpyCanvas/internal/model"

	"gorm.io/gorm"
)

// MatchRepository 对局及其附属数据（参与者、提案、投票、回合、猜测）持久化
type MatchRepository interface {
	// Create 创建对局及全部参与者
	Create(ctx context.Context, m *model.Match, participants []model.Participant) error
	Get(ctx context.Context, id string) (*model.Match, error)
	// GetForUpdate 锁定对局行，对局内所有状态变更都先拿这把锁
	GetForUpdate(ctx context.Context, id string) (*model.Match, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	// ActiveMatchIDForPlayer 玩家当前所在的进行中对局，没有返回空串
	ActiveMatchIDForPlayer(ctx context.Context, playerID string) (string, error)
	// ListUnrated 已结束但尚未结算积分的对局
	ListUnrated(ctx context.Context, limit int) ([]model.Match, error)

	Participants(ctx context.Context, matchID string) ([]model.Participant, error)
	UpdateParticipant(ctx context.Context, matchID, playerID string, fields map[string]interface{}) error
	// ResetReady 清空全部参与者的准备状态
	ResetReady(ctx context.Context, matchID string) error
	// AddScore 给当前为 role 的参与者各加一分
	AddScore(ctx context.Context, matchID string, role model.Role) error
	DeleteParticipants(ctx context.Context, matchID string) error

	Proposals(ctx context.Context, matchID string) ([]model.KeyProposal, error)
	// CreateProposal 每个间谍只能提一次，重复返回 ErrDuplicate
	CreateProposal(ctx context.Context, p *model.KeyProposal) error
	GetProposal(ctx context.Context, matchID, proposalID string) (*model.KeyProposal, error)
	// CreateVote 同一间谍对同一提案只能投一次，重复返回 ErrDuplicate；返回该提案最新票数
	CreateVote(ctx context.Context, v *model.KeyVote) (int, error)

	Round(ctx context.Context, matchID string, number int) (*model.Round, error)
	CreateRound(ctx context.Context, r *model.Round) error
	CloseRound(ctx context.Context, roundID, winnerID string, team model.Role, at time.Time) error
	// CreateGuess 每个侦探每回合一次，重复返回 ErrDuplicate
	CreateGuess(ctx context.Context, g *model.GuessAttempt) error
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository 创建对局仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Create(ctx context.Context, m *model.Match, participants []model.Participant) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(m).Error; err != nil {
		return translate(err)
	}
	if len(participants) == 0 {
		return nil
	}
	for i := range participants {
		participants[i].MatchID = m.ID
	}
	return translate(db.Create(&participants).Error)
}

func (r *matchRepository) Get(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) GetForUpdate(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Match{}).Where("id = ?", id).Updates(fields).Error
}

func (r *matchRepository) ActiveMatchIDForPlayer(ctx context.Context, playerID string) (string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Participant{}).
		Joins("JOIN matches ON matches.id = match_participants.match_id").
		Where("match_participants.player_id = ? AND match_participants.connection_status = ? AND matches.status = ?",
			playerID, model.ConnJoined, model.MatchActive).
		Order("matches.started_at DESC").Limit(1).
		Pluck("matches.id", &ids).Error; err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

func (r *matchRepository) ListUnrated(ctx context.Context, limit int) ([]model.Match, error) {
	var list []model.Match
	if err := r.db.WithContext(ctx).Where("status = ? AND rated_at IS NULL", model.MatchFinished).
		Order("ended_at ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) Participants(ctx context.Context, matchID string) ([]model.Participant, error) {
	var list []model.Participant
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Order("seat ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) UpdateParticipant(ctx context.Context, matchID, playerID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Participant{}).
		Where("match_id = ? AND player_id = ?", matchID, playerID).Updates(fields).Error
}

func (r *matchRepository) ResetReady(ctx context.Context, matchID string) error {
	return r.db.WithContext(ctx).Model(&model.Participant{}).
		Where("match_id = ?", matchID).Update("ready", false).Error
}

func (r *matchRepository) AddScore(ctx context.Context, matchID string, role model.Role) error {
	return r.db.WithContext(ctx).Model(&model.Participant{}).
		Where("match_id = ? AND role = ?", matchID, role).
		Update("score", gorm.Expr("score + 1")).Error
}

func (r *matchRepository) DeleteParticipants(ctx context.Context, matchID string) error {
	return r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&model.Participant{}).Error
}

func (r *matchRepository) Proposals(ctx context.Context, matchID string) ([]model.KeyProposal, error) {
	var list []model.KeyProposal
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) CreateProposal(ctx context.Context, p *model.KeyProposal) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *matchRepository) GetProposal(ctx context.Context, matchID, proposalID string) (*model.KeyProposal, error) {
	var p model.KeyProposal
	if err := r.db.WithContext(ctx).Where("id = ? AND match_id = ?", proposalID, matchID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *matchRepository) CreateVote(ctx context.Context, v *model.KeyVote) (int, error) {
	db := r.db.WithContext(ctx)
	if err := db.Create(v).Error; err != nil {
		return 0, translate(err)
	}
	var count int64
	if err := db.Model(&model.KeyVote{}).Where("proposal_id = ?", v.ProposalID).Count(&count).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.KeyProposal{}).Where("id = ?", v.ProposalID).
		Update("votes", count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *matchRepository) Round(ctx context.Context, matchID string, number int) (*model.Round, error) {
	var rd model.Round
	if err := r.db.WithContext(ctx).Where("match_id = ? AND round_number = ?", matchID, number).
		First(&rd).Error; err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *matchRepository) CreateRound(ctx context.Context, rd *model.Round) error {
	return translate(r.db.WithContext(ctx).Create(rd).Error)
}

func (r *matchRepository) CloseRound(ctx context.Context, roundID, winnerID string, team model.Role, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Round{}).Where("id = ?", roundID).Updates(map[string]interface{}{
		"winner_id":   winnerID,
		"winner_team": team,
		"ended_at":    at,
	}).Error
}

func (r *matchRepository) CreateGuess(ctx context.Context, g *model.GuessAttempt) error {
	return translate(r.db.WithContext(ctx).Create(g).Error)
}
