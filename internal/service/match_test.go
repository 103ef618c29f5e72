package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"

	"github.com/google/uuid"
)

func TestKeySelectionToFirstRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)

	view := f.readyAll(t, matchID)
	if view.Phase != model.PhaseKeySelection {
		t.Fatalf("phase after ready = %s", view.Phase)
	}
	for _, p := range view.Participants {
		if p.Ready {
			t.Fatalf("ready flags not reset on phase change: %+v", p)
		}
	}

	view = f.selectKey(t, matchID)
	if view.Phase != model.PhasePlaying || view.CurrentRound != 1 {
		t.Fatalf("after votes = %s round %d", view.Phase, view.CurrentRound)
	}
	if view.FinalKey == nil || *view.FinalKey != "FIRE" {
		t.Fatalf("final key = %v", view.FinalKey)
	}
	if view.Round == nil || view.Round.DrawerID != "a" || view.Round.TargetWord == nil || *view.Round.TargetWord != "FIRE" {
		t.Fatalf("round 1 = %+v", view.Round)
	}

	detective, err := f.matches.GetMatch(ctx, "c", matchID)
	if err != nil {
		t.Fatal(err)
	}
	if detective.FinalKey != nil || detective.Proposals != nil || detective.Round.TargetWord != nil {
		t.Fatalf("detective view leaks secrets: %+v", detective)
	}
	if detective.Round.DrawerID != "a" || detective.Viewer.IsDrawer {
		t.Fatalf("detective round view = %+v", detective.Round)
	}
}

func TestActionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)

	_, err := f.matches.GetMatch(ctx, "a", "not-a-uuid")
	assertKind(t, err, game.KindInvalid)
	_, err = f.matches.GetMatch(ctx, "a", uuid.NewString())
	assertKind(t, err, game.KindNotFound)
	_, err = f.matches.GetMatch(ctx, "outsider", matchID)
	assertKind(t, err, game.KindForbidden)

	_, err = f.matches.ProposeKey(ctx, "a", matchID, "fire")
	assertKind(t, err, game.KindInvalidPhase)
	_, err = f.matches.ProposeKey(ctx, "c", matchID, "fire")
	assertKind(t, err, game.KindForbidden)
	_, err = f.matches.ProposeKey(ctx, "a", matchID, "   ")
	assertKind(t, err, game.KindInvalid)
	_, err = f.matches.ProposeKey(ctx, "a", matchID, strings.Repeat("x", 21))
	assertKind(t, err, game.KindInvalid)

	if _, err := f.matches.MarkReady(ctx, "a", matchID); err != nil {
		t.Fatal(err)
	}
	_, err = f.matches.MarkReady(ctx, "a", matchID)
	assertKind(t, err, game.KindConflict)

	for _, id := range []string{"b", "c", "d"} {
		if _, err := f.matches.MarkReady(ctx, id, matchID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.matches.ProposeKey(ctx, "a", matchID, "fire"); err != nil {
		t.Fatal(err)
	}
	_, err = f.matches.ProposeKey(ctx, "a", matchID, "ice")
	assertKind(t, err, game.KindConflict)
	_, err = f.matches.Vote(ctx, "a", matchID, uuid.NewString())
	assertKind(t, err, game.KindNotFound)
	_, err = f.matches.Guess(ctx, "c", matchID, "fire", 0)
	assertKind(t, err, game.KindInvalidPhase)
}

func TestGuessAndSignalRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	f.toPlaying(t, matchID)

	_, err := f.matches.SpySignal(ctx, "a", matchID, "fire", 0)
	assertKind(t, err, game.KindForbidden)
	_, err = f.matches.Guess(ctx, "a", matchID, "fire", 0)
	assertKind(t, err, game.KindForbidden)

	res, err := f.matches.SpySignal(ctx, "b", matchID, "ice", 0)
	if err != nil || res.Correct {
		t.Fatalf("wrong signal = %+v, %v", res, err)
	}
	if res.Match.CurrentRound != 1 || participant(t, res.Match, "b").Score != 0 {
		t.Fatalf("wrong signal changed state: %+v", res.Match)
	}

	res, err = f.matches.Guess(ctx, "c", matchID, "water", 0)
	if err != nil || res.Correct {
		t.Fatalf("wrong guess = %+v, %v", res, err)
	}
	_, err = f.matches.Guess(ctx, "c", matchID, "fire", 0)
	assertKind(t, err, game.KindConflict)

	res, err = f.matches.Guess(ctx, "d", matchID, " Fire ", 0)
	if err != nil || !res.Correct {
		t.Fatalf("correct guess = %+v, %v", res, err)
	}
	if res.Match.CurrentRound != 2 || participant(t, res.Match, "c").Score != 1 || participant(t, res.Match, "d").Score != 1 {
		t.Fatalf("after detective win: %+v", res.Match)
	}
	if res.Match.Round == nil || res.Match.Round.DrawerID != "b" {
		t.Fatalf("round 2 drawer = %+v", res.Match.Round)
	}

	// 针对已结束回合的猜测
	_, err = f.matches.Guess(ctx, "c", matchID, "fire", 1)
	assertKind(t, err, game.KindConflict)
	_, err = f.matches.SpySignal(ctx, "a", matchID, "fire", 1)
	assertKind(t, err, game.KindConflict)
}

// playToHalftime 第 1 回合间谍得分，第 2 回合侦探得分
func playToHalftime(t *testing.T, f *fixture, matchID string) *game.MatchView {
	t.Helper()
	ctx := context.Background()
	f.toPlaying(t, matchID)
	res, err := f.matches.SpySignal(ctx, "b", matchID, "FIRE", 0)
	if err != nil || !res.Correct {
		t.Fatalf("round 1 signal = %+v, %v", res, err)
	}
	res, err = f.matches.Guess(ctx, "c", matchID, "fire ", 0)
	if err != nil || !res.Correct {
		t.Fatalf("round 2 guess = %+v, %v", res, err)
	}
	return res.Match
}

func TestHalftimeSwapsRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)

	view := playToHalftime(t, f, matchID)
	if view.Phase != model.PhaseHalftime || view.CurrentRound != 3 {
		t.Fatalf("after round 2 = %s round %d", view.Phase, view.CurrentRound)
	}
	for _, p := range view.Participants {
		if p.Role != p.StartingRole.Opposite() || p.Ready {
			t.Fatalf("participant not swapped: %+v", p)
		}
	}
	if view.Viewer.Role != model.RoleSpy || view.FinalKey == nil {
		t.Fatalf("c should now see the key as a spy: %+v", view.Viewer)
	}

	_, err := f.matches.Guess(ctx, "a", matchID, "fire", 0)
	assertKind(t, err, game.KindInvalidPhase)

	view = f.readyAll(t, matchID)
	if view.Phase != model.PhasePlaying || view.Round == nil || view.Round.RoundNumber != 3 || view.Round.DrawerID != "c" {
		t.Fatalf("round 3 = %s %+v", view.Phase, view.Round)
	}

	old, err := f.matches.GetMatch(ctx, "a", matchID)
	if err != nil {
		t.Fatal(err)
	}
	if old.FinalKey != nil || old.Round.TargetWord != nil {
		t.Fatal("former spy still sees secrets after the swap")
	}
}

func TestFullMatchRatesStartingTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	playToHalftime(t, f, matchID)
	f.readyAll(t, matchID)

	if res, err := f.matches.Guess(ctx, "a", matchID, "fire", 0); err != nil || !res.Correct {
		t.Fatalf("round 3 guess = %+v, %v", res, err)
	}
	res, err := f.matches.Guess(ctx, "b", matchID, "FIRE", 0)
	if err != nil || !res.Correct {
		t.Fatalf("round 4 guess = %+v, %v", res, err)
	}
	if res.Match.Phase != model.PhaseFinished || res.Match.Status != model.MatchFinished {
		t.Fatalf("after round 4 = %s/%s", res.Match.Status, res.Match.Phase)
	}
	if res.Match.RatingStatus != game.RatingDone {
		t.Fatalf("rating status = %s", res.Match.RatingStatus)
	}

	want := map[string]int{"a": 1025, "b": 1025, "c": 975, "d": 975}
	for id, rating := range want {
		p, err := f.store.Players.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Rating != rating || p.MatchesPlayed != 1 {
			t.Fatalf("player %s = %d (%d played), want %d", id, p.Rating, p.MatchesPlayed, rating)
		}
	}

	report, err := f.rating.RateMatch(ctx, matchID)
	if err != nil || !report.AlreadyRated {
		t.Fatalf("second RateMatch = %+v, %v", report, err)
	}
	if p, _ := f.store.Players.Get(ctx, "a"); p.Rating != 1025 {
		t.Fatalf("rating applied twice: %d", p.Rating)
	}

	kinds := f.pub.kinds(interfaces.MatchTopic(matchID))
	if kinds[len(kinds)-1] != interfaces.EventMatchRated {
		t.Fatalf("last notification = %s", kinds[len(kinds)-1])
	}

	// 结束后可以重新排队
	status, err := f.matchmaking.Enqueue(ctx, "a", "a")
	if err != nil || !status.InQueue {
		t.Fatalf("re-enqueue after finish = %+v, %v", status, err)
	}

	// 结束后离开只标记掉线
	left, err := f.matches.LeaveMatch(ctx, "c", matchID)
	if err != nil || left.Cancelled {
		t.Fatalf("leave finished match = %+v, %v", left, err)
	}
}

func TestTiedMatchGoesToFinalDetectives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	playToHalftime(t, f, matchID)
	f.readyAll(t, matchID)

	if res, err := f.matches.Guess(ctx, "a", matchID, "fire", 0); err != nil || !res.Correct {
		t.Fatalf("round 3 guess = %+v, %v", res, err)
	}
	// 第 4 回合作画者是 d，由 c 报暗号，2:2 平局
	res, err := f.matches.SpySignal(ctx, "c", matchID, "fire", 0)
	if err != nil || !res.Correct || res.Match.Phase != model.PhaseFinished {
		t.Fatalf("round 4 signal = %+v, %v", res, err)
	}
	if participant(t, res.Match, "a").Score != participant(t, res.Match, "c").Score {
		t.Fatalf("scores not tied: %+v", res.Match.Participants)
	}

	// 终局侦探 a、b（开局间谍）获胜
	want := map[string]int{"a": 1025, "b": 1025, "c": 975, "d": 975}
	for id, rating := range want {
		p, err := f.store.Players.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Rating != rating || p.MatchesPlayed != 1 {
			t.Fatalf("player %s after tie = %d (%d played), want %d", id, p.Rating, p.MatchesPlayed, rating)
		}
	}
}

func TestRunRetriesUnratedMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)

	report, err := f.rating.RateMatch(ctx, matchID)
	if err != nil || !report.NotFinished || len(report.Changes) != 0 {
		t.Fatalf("RateMatch on active match = %+v, %v", report, err)
	}
	if p, _ := f.store.Players.Get(ctx, "a"); p.Rating != 1000 || p.MatchesPlayed != 0 {
		t.Fatalf("active match changed ratings: %+v", p)
	}

	if err := f.store.Matches.Update(ctx, matchID, map[string]interface{}{
		"status": model.MatchFinished,
		"phase":  model.PhaseFinished,
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Matches.AddScore(ctx, matchID, model.RoleSpy); err != nil {
		t.Fatal(err)
	}

	view, err := f.matches.GetMatch(ctx, "a", matchID)
	if err != nil || view.RatingStatus != game.RatingPending {
		t.Fatalf("rating status = %+v, %v", view, err)
	}

	rated, err := f.rating.Run(ctx)
	if err != nil || rated != 1 {
		t.Fatalf("Run = %d, %v", rated, err)
	}
	rated, err = f.rating.Run(ctx)
	if err != nil || rated != 0 {
		t.Fatalf("second Run = %d, %v", rated, err)
	}
	if p, _ := f.store.Players.Get(ctx, "a"); p.Rating != 1025 {
		t.Fatalf("a rating = %d", p.Rating)
	}
}

func TestLeaveCancelsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	f.toPlaying(t, matchID)

	res, err := f.matches.LeaveMatch(ctx, "c", matchID)
	if err != nil || !res.Cancelled {
		t.Fatalf("leave = %+v, %v", res, err)
	}

	_, err = f.matches.Guess(ctx, "d", matchID, "fire", 0)
	assertKind(t, err, game.KindGone)
	_, err = f.matches.GetMatch(ctx, "a", matchID)
	assertKind(t, err, game.KindGone)
	_, err = f.matches.LeaveMatch(ctx, "a", matchID)
	assertKind(t, err, game.KindGone)

	m, err := f.store.Matches.Get(ctx, matchID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != model.MatchCancelled || m.Phase != model.PhaseFinished || m.EndedAt == nil {
		t.Fatalf("cancelled match = %+v", m)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		status, err := f.matchmaking.Enqueue(ctx, id, id)
		if err != nil {
			t.Fatalf("player %s cannot requeue: %v", id, err)
		}
		if id == "d" && status.MatchID == "" {
			t.Fatal("released players did not form a new match")
		}
	}
	kinds := f.pub.kinds(interfaces.MatchTopic(matchID))
	if kinds[len(kinds)-1] != interfaces.EventMatchCancelled {
		t.Fatalf("last notification = %v", kinds)
	}
}

func TestConcurrentFinalVotesStartOneRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	f.readyAll(t, matchID)

	view, err := f.matches.ProposeKey(ctx, "a", matchID, "fire")
	if err != nil {
		t.Fatal(err)
	}
	view, err = f.matches.ProposeKey(ctx, "b", matchID, "water")
	if err != nil {
		t.Fatal(err)
	}
	fire, water := proposalID(t, view, "FIRE"), proposalID(t, view, "WATER")
	if _, err := f.matches.Vote(ctx, "a", matchID, fire); err != nil {
		t.Fatal(err)
	}
	if _, err := f.matches.Vote(ctx, "b", matchID, water); err != nil {
		t.Fatal(err)
	}

	votes := []struct{ player, proposal string }{{"b", fire}, {"a", water}}
	errs := make([]error, len(votes))
	var wg sync.WaitGroup
	for i, v := range votes {
		wg.Add(1)
		go func(i int, player, proposal string) {
			defer wg.Done()
			_, errs[i] = f.matches.Vote(ctx, player, matchID, proposal)
		}(i, v.player, v.proposal)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !isAny(err, game.KindConflict, game.KindInvalidPhase):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful final votes = %d, errs = %v", succeeded, errs)
	}
	if _, err := f.store.Matches.Round(ctx, matchID, 1); err != nil {
		t.Fatalf("round 1 missing: %v", err)
	}
	if _, err := f.store.Matches.Round(ctx, matchID, 2); err == nil {
		t.Fatal("a second round was created")
	}
	m, _ := f.store.Matches.Get(ctx, matchID)
	if m.Phase != model.PhasePlaying || m.CurrentRoundNumber != 1 {
		t.Fatalf("match = %s round %d", m.Phase, m.CurrentRoundNumber)
	}
}

func TestConcurrentCorrectGuessesScoreOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	f.toPlaying(t, matchID)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{"c", "d"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.matches.Guess(ctx, id, matchID, "fire", 1)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !isAny(err, game.KindConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful guesses = %d (%v)", succeeded, errs)
	}
	view, err := f.matches.GetMatch(ctx, "c", matchID)
	if err != nil {
		t.Fatal(err)
	}
	if view.CurrentRound != 2 || participant(t, view, "c").Score != 1 {
		t.Fatalf("after race: round %d, score %d", view.CurrentRound, participant(t, view, "c").Score)
	}
}

func TestNotificationsCarryNoSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t)
	f.toPlaying(t, matchID)
	if _, err := f.matches.Guess(ctx, "c", matchID, "water", 0); err != nil {
		t.Fatal(err)
	}

	f.pub.mu.Lock()
	items := append([]published(nil), f.pub.items...)
	f.pub.mu.Unlock()
	if len(items) == 0 {
		t.Fatal("no notifications recorded")
	}
	for _, it := range items {
		b, _ := json.Marshal(it.n)
		if strings.Contains(string(b), "FIRE") || strings.Contains(string(b), "WATER") {
			t.Fatalf("notification leaks text: %s", b)
		}
	}

	events, err := f.matches.History(ctx, "c", matchID)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if strings.Contains(string(e.Payload), "FIRE") {
			t.Fatalf("event %s leaks the key: %s", e.Kind, e.Payload)
		}
	}
}
