package model

import (
	"time"

	"gorm.io/datatypes"
)

type Player struct {
	ID            string    `gorm:"column:id;type:varchar(64);primaryKey;comment:玩家ID（认证主体sub）"`
	Username      string    `gorm:"column:username;type:varchar(64);not null;default:'';comment:用户名"`
	Rating        int       `gorm:"column:rating;type:int;not null;default:1000;comment:积分"`
	RankTier      RankTier  `gorm:"column:rank_tier;type:varchar(16);not null;default:BRONZE;comment:段位"`
	MatchesPlayed int       `gorm:"column:matches_played;type:int;not null;default:0;comment:已结算对局数"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime;comment:更新时间"`
}

type QueueEntry struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID   string    `gorm:"column:player_id;type:varchar(64);uniqueIndex;not null;comment:玩家ID"`
	RankTier   RankTier  `gorm:"column:rank_tier;type:varchar(16);index;not null;comment:入队时段位"`
	Rating     int       `gorm:"column:rating;type:int;not null;comment:入队时积分快照"`
	EnqueuedAt time.Time `gorm:"column:enqueued_at;type:timestamp;index;not null;comment:入队时间"`
}

type Match struct {
	ID                 string      `gorm:"column:id;type:varchar(36);primaryKey;comment:对局UUID"`
	Status             MatchStatus `gorm:"column:status;type:varchar(16);index;not null;comment:状态：ACTIVE/CANCELLED/FINISHED"`
	Phase              Phase       `gorm:"column:phase;type:varchar(16);not null;comment:阶段"`
	CurrentRoundNumber int         `gorm:"column:current_round_number;type:int;not null;comment:当前回合"`
	RoundsToPlay       int         `gorm:"column:rounds_to_play;type:int;not null;comment:总回合数"`
	FinalKey           *string     `gorm:"column:final_key;type:varchar(32);comment:最终暗号（仅间谍可见）"`
	StartedAt          time.Time   `gorm:"column:started_at;type:timestamp;not null;comment:开始时间"`
	EndedAt            *time.Time  `gorm:"column:ended_at;type:timestamp;comment:结束时间"`
	RatedAt            *time.Time  `gorm:"column:rated_at;type:timestamp;index;comment:积分结算时间，为空表示待结算"`
	CreatedAt          time.Time   `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
	UpdatedAt          time.Time   `gorm:"column:updated_at;autoUpdateTime;comment:更新时间"`
}

type Participant struct {
	ID               uint64           `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID          string           `gorm:"column:match_id;type:varchar(36);not null;uniqueIndex:uk_match_player;comment:对局ID"`
	PlayerID         string           `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uk_match_player;index;comment:玩家ID"`
	Seat             int              `gorm:"column:seat;type:int;not null;comment:座位（入队顺序0-3）"`
	Role             Role             `gorm:"column:role;type:varchar(16);not null;comment:当前角色"`
	StartingRole     Role             `gorm:"column:starting_role;type:varchar(16);not null;comment:开局角色（结算队伍）"`
	ConnectionStatus ConnectionStatus `gorm:"column:connection_status;type:varchar(16);not null;comment:连接状态"`
	Ready            bool             `gorm:"column:ready;type:boolean;not null;default:false;comment:当前阶段是否准备"`
	Score            int              `gorm:"column:score;type:int;not null;default:0;comment:所在队伍赢下的回合数"`
	RatingSnapshot   int              `gorm:"column:rating_snapshot;type:int;not null;comment:开局积分快照"`
	JoinedAt         time.Time        `gorm:"column:joined_at;autoCreateTime;comment:加入时间"`
}

type KeyProposal struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey;comment:提案UUID"`
	MatchID    string    `gorm:"column:match_id;type:varchar(36);not null;uniqueIndex:uk_match_proposer;comment:对局ID"`
	ProposerID string    `gorm:"column:proposer_id;type:varchar(64);not null;uniqueIndex:uk_match_proposer;comment:提案间谍"`
	Text       string    `gorm:"column:text;type:varchar(32);not null;comment:暗号（大写去空格）"`
	Votes      int       `gorm:"column:votes;type:int;not null;default:0;comment:票数"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
}

type KeyVote struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID    string    `gorm:"column:match_id;type:varchar(36);not null;index;comment:对局ID"`
	ProposalID string    `gorm:"column:proposal_id;type:varchar(36);not null;uniqueIndex:uk_proposal_voter;comment:提案ID"`
	VoterID    string    `gorm:"column:voter_id;type:varchar(64);not null;uniqueIndex:uk_proposal_voter;comment:投票间谍"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
}

type Round struct {
	ID          string     `gorm:"column:id;type:varchar(36);primaryKey;comment:回合UUID"`
	MatchID     string     `gorm:"column:match_id;type:varchar(36);not null;uniqueIndex:uk_match_round;comment:对局ID"`
	RoundNumber int        `gorm:"column:round_number;type:int;not null;uniqueIndex:uk_match_round;comment:回合序号"`
	DrawerID    string     `gorm:"column:drawer_id;type:varchar(64);not null;comment:作画间谍"`
	TargetWord  string     `gorm:"column:target_word;type:varchar(32);not null;comment:目标词（仅间谍可见）"`
	WinnerID    *string    `gorm:"column:winner_id;type:varchar(64);comment:赢下回合的玩家"`
	WinnerTeam  *Role      `gorm:"column:winner_team;type:varchar(16);comment:赢下回合的角色"`
	StartedAt   time.Time  `gorm:"column:started_at;type:timestamp;not null;comment:开始时间"`
	EndedAt     *time.Time `gorm:"column:ended_at;type:timestamp;comment:结束时间"`
}

type GuessAttempt struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	RoundID       string    `gorm:"column:round_id;type:varchar(36);not null;uniqueIndex:uk_round_participant;comment:回合ID"`
	ParticipantID string    `gorm:"column:participant_id;type:varchar(64);not null;uniqueIndex:uk_round_participant;comment:猜测的侦探"`
	Text          string    `gorm:"column:text;type:varchar(64);not null;comment:猜测内容（大写去空格）"`
	IsCorrect     bool      `gorm:"column:is_correct;type:boolean;not null;default:false;comment:是否猜中"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
}

// MatchEvent 对局事件流水，payload 不含暗号等机密
type MatchEvent struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID   string         `gorm:"column:match_id;type:varchar(36);not null;index;comment:对局ID"`
	Kind      string         `gorm:"column:kind;type:varchar(32);not null;comment:事件类型"`
	ActorID   string         `gorm:"column:actor_id;type:varchar(64);not null;default:'';comment:触发玩家"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb;comment:事件内容"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
}

func (Player) TableName() string       { return "players" }
func (QueueEntry) TableName() string   { return "queue_entries" }
func (Match) TableName() string        { return "matches" }
func (Participant) TableName() string  { return "match_participants" }
func (KeyProposal) TableName() string  { return "key_proposals" }
func (KeyVote) TableName() string      { return "key_votes" }
func (Round) TableName() string        { return "rounds" }
func (GuessAttempt) TableName() string { return "guess_attempts" }
func (MatchEvent) TableName() string   { return "match_events" }

// All 按依赖顺序返回全部表模型（AutoMigrate 使用）
func All() []interface{} {
	return []interface{}{
		&Player{},
		&QueueEntry{},
		&Match{},
		&Participant{},
		&KeyProposal{},
		&KeyVote{},
		&Round{},
		&GuessAttempt{},
		&MatchEvent{},
	}
}
