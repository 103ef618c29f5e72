package game

import (
	"time"

	"SpyCanvas/internal/model"
)

// MatchState 某一时刻对局的完整状态（含机密）
type MatchState struct {
	Match        model.Match
	Participants []model.Participant
	Proposals    []model.KeyProposal
	Round        *model.Round
}

type MatchView struct {
	ID           string            `json:"id"`
	Status       model.MatchStatus `json:"status"`
	Phase        model.Phase       `json:"phase"`
	CurrentRound int               `json:"current_round"`
	RoundsToPlay int               `json:"rounds_to_play"`
	FinalKey     *string           `json:"final_key,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Proposals    []ProposalView    `json:"proposals,omitempty"`
	Round        *RoundView        `json:"round,omitempty"`
	Viewer       ViewerView        `json:"viewer"`
	RatingStatus string            `json:"rating_status,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

type ParticipantView struct {
	PlayerID         string                 `json:"player_id"`
	Seat             int                    `json:"seat"`
	Role             model.Role             `json:"role"`
	StartingRole     model.Role             `json:"starting_role"`
	ConnectionStatus model.ConnectionStatus `json:"connection_status"`
	Ready            bool                   `json:"ready"`
	Score            int                    `json:"score"`
}

type ProposalView struct {
	ID         string `json:"id"`
	ProposerID string `json:"proposer_id"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
}

type RoundView struct {
	ID          string      `json:"id"`
	RoundNumber int         `json:"round_number"`
	DrawerID    string      `json:"drawer_id"`
	TargetWord  *string     `json:"target_word,omitempty"`
	WinnerID    *string     `json:"winner_id,omitempty"`
	WinnerTeam  *model.Role `json:"winner_team,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

type ViewerView struct {
	PlayerID string     `json:"player_id"`
	Role     model.Role `json:"role"`
	IsDrawer bool       `json:"is_drawer"`
}

// 结算状态
const (
	RatingPending = "pending"
	RatingDone    = "done"
)

// Project 按查看者生成视图：暗号、目标词、提案列表只对当前间谍可见
func Project(st MatchState, viewerID string) MatchView {
	m := st.Match
	view := MatchView{
		ID:           m.ID,
		Status:       m.Status,
		Phase:        m.Phase,
		CurrentRound: m.CurrentRoundNumber,
		RoundsToPlay: m.RoundsToPlay,
		Participants: make([]ParticipantView, 0, len(st.Participants)),
		Viewer:       ViewerView{PlayerID: viewerID},
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
	}

	for _, p := range st.Participants {
		if p.PlayerID == viewerID {
			view.Viewer.Role = p.Role
		}
		view.Participants = append(view.Participants, ParticipantView{
			PlayerID:         p.PlayerID,
			Seat:             p.Seat,
			Role:             p.Role,
			StartingRole:     p.StartingRole,
			ConnectionStatus: p.ConnectionStatus,
			Ready:            p.Ready,
			Score:            p.Score,
		})
	}
	isSpy := view.Viewer.Role == model.RoleSpy

	if isSpy {
		if m.FinalKey != nil {
			k := *m.FinalKey
			view.FinalKey = &k
		}
		view.Proposals = make([]ProposalView, 0, len(st.Proposals))
		for _, p := range st.Proposals {
			view.Proposals = append(view.Proposals, ProposalView{
				ID:         p.ID,
				ProposerID: p.ProposerID,
				Text:       p.Text,
				Votes:      p.Votes,
			})
		}
	}

	if r := st.Round; r != nil {
		rv := &RoundView{
			ID:          r.ID,
			RoundNumber: r.RoundNumber,
			DrawerID:    r.DrawerID,
			WinnerID:    r.WinnerID,
			WinnerTeam:  r.WinnerTeam,
			StartedAt:   r.StartedAt,
			EndedAt:     r.EndedAt,
		}
		if isSpy {
			w := r.TargetWord
			rv.TargetWord = &w
		}
		view.Round = rv
		view.Viewer.IsDrawer = r.DrawerID == viewerID && r.EndedAt == nil
	}

	if m.Status == model.MatchFinished {
		view.RatingStatus = RatingPending
		if m.RatedAt != nil {
			view.RatingStatus = RatingDone
		}
	}
	return view
}
