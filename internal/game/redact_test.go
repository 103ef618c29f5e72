package game

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"SpyCanvas/internal/model"
)

func sampleState() MatchState {
	key := "FIRE"
	return MatchState{
		Match: model.Match{
			ID:                 "m1",
			Status:             model.MatchActive,
			Phase:              model.PhasePlaying,
			CurrentRoundNumber: 1,
			RoundsToPlay:       4,
			FinalKey:           &key,
			StartedAt:          time.Now(),
		},
		Participants: []model.Participant{
			{PlayerID: "a", Seat: 0, Role: model.RoleSpy, StartingRole: model.RoleSpy},
			{PlayerID: "b", Seat: 1, Role: model.RoleSpy, StartingRole: model.RoleSpy},
			{PlayerID: "c", Seat: 2, Role: model.RoleDetective, StartingRole: model.RoleDetective},
			{PlayerID: "d", Seat: 3, Role: model.RoleDetective, StartingRole: model.RoleDetective},
		},
		Proposals: []model.KeyProposal{
			{ID: "p1", ProposerID: "a", Text: "FIRE", Votes: 2},
			{ID: "p2", ProposerID: "b", Text: "WATER", Votes: 0},
		},
		Round: &model.Round{ID: "r1", RoundNumber: 1, DrawerID: "a", TargetWord: "FIRE"},
	}
}

func TestProjectSpySeesSecrets(t *testing.T) {
	view := Project(sampleState(), "a")
	if view.FinalKey == nil || *view.FinalKey != "FIRE" {
		t.Fatalf("spy final key = %v", view.FinalKey)
	}
	if view.Round == nil || view.Round.TargetWord == nil || *view.Round.TargetWord != "FIRE" {
		t.Fatal("spy should see the target word")
	}
	if len(view.Proposals) != 2 {
		t.Fatalf("spy proposals = %d, want 2", len(view.Proposals))
	}
	if !view.Viewer.IsDrawer {
		t.Fatal("seat 0 spy draws round 1")
	}
}

func TestProjectDetectiveSeesNoSecrets(t *testing.T) {
	for _, viewer := range []string{"c", "d", "stranger"} {
		view := Project(sampleState(), viewer)
		if view.FinalKey != nil || view.Proposals != nil {
			t.Fatalf("viewer %s sees key material", viewer)
		}
		if view.Round == nil || view.Round.TargetWord != nil {
			t.Fatalf("viewer %s sees the target word", viewer)
		}
		body, err := json.Marshal(view)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(body), "FIRE") || strings.Contains(string(body), "WATER") {
			t.Fatalf("viewer %s payload leaks a secret: %s", viewer, body)
		}
		if len(view.Participants) != 4 {
			t.Fatalf("participants = %d", len(view.Participants))
		}
	}
}

func TestProjectFollowsCurrentRole(t *testing.T) {
	st := sampleState()
	for i := range st.Participants {
		st.Participants[i].Role = st.Participants[i].Role.Opposite()
	}
	st.Match.Phase = model.PhaseHalftime
	if view := Project(st, "a"); view.FinalKey != nil {
		t.Fatal("a former spy must lose access after the swap")
	}
	if view := Project(st, "c"); view.FinalKey == nil {
		t.Fatal("a new spy must see the final key")
	}
}

func TestProjectRatingStatus(t *testing.T) {
	st := sampleState()
	if Project(st, "a").RatingStatus != "" {
		t.Fatal("active match has no rating status")
	}
	st.Match.Status = model.MatchFinished
	st.Match.Phase = model.PhaseFinished
	if got := Project(st, "c").RatingStatus; got != RatingPending {
		t.Fatalf("rating status = %q", got)
	}
	now := time.Now()
	st.Match.RatedAt = &now
	if got := Project(st, "c").RatingStatus; got != RatingDone {
		t.Fatalf("rating status = %q", got)
	}
}
