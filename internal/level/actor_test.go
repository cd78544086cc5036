package level

import "testing"

func TestPackDirections_EastWithPendingNorth(t *testing.T) {
	if got := PackDirections(DIR_EAST, DIR_NORTH); got != 10 {
		t.Fatalf("want 10 got %d", got)
	}

	cur, pending := UnpackDirections(10)
	if cur != DIR_EAST || pending != DIR_NORTH {
		t.Fatalf("want E/N got %s/%s", cur, pending)
	}
}

func TestParseActorState_RoundTrip(t *testing.T) {
	st := ActorState{X: 3.25, Y: -0.5, Heading: DIR_WEST, Pending: DIR_SOUTH, Score: 1240}

	got, err := ParseActorState(st.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != st {
		t.Fatalf("want %+v got %+v", st, got)
	}
}

func TestParseActorState_RejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"1,2;3",
		"1;3;4",
		"a,2;3;4",
		"1,2;x;4",
		"1,2;7;4",
		"1,2;3;y",
	}

	for _, s := range bad {
		if _, err := ParseActorState(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestActor_ScoreNeverNegative(t *testing.T) {
	a := &Actor{}
	a.AddScore(50)
	a.AddScore(-SCORE_CATCH)

	if a.Score() != 0 {
		t.Fatalf("score should clamp at 0, got %d", a.Score())
	}

	a.Apply(ActorState{Score: -3})
	if a.Score() != 0 {
		t.Fatalf("applied score should clamp at 0, got %d", a.Score())
	}
}
