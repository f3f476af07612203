package session

import (
	"testing"
	"time"
)

type fakeTimer struct {
	stopped int
}

func (t *fakeTimer) Stop() bool {
	t.stopped++
	return t.stopped == 1
}

// testStore returns a memoryStore whose timers never fire on their own; the
// captured callbacks let tests fire them deterministically.
func testStore(now time.Time) (*memoryStore, *[]func(), *[]*fakeTimer) {
	fires := &[]func(){}
	timers := &[]*fakeTimer{}
	store := &memoryStore{
		sessions: make(map[string]*userSession),
		newTimer: func(_ time.Duration, fn func()) Timer {
			t := &fakeTimer{}
			*fires = append(*fires, fn)
			*timers = append(*timers, t)
			return t
		},
		now: func() time.Time { return now },
	}
	return store, fires, timers
}

func TestGetStateDefaultsToMainMenu(t *testing.T) {
	store, _, _ := testStore(time.Now())
	if got := store.GetState("42"); got != StateMainMenu {
		t.Fatalf("GetState = %s, want %s", got, StateMainMenu)
	}
}

func TestSetStateRoundTrip(t *testing.T) {
	store, _, _ := testStore(time.Now())
	store.SetState("42", StateWaitingCS)
	if got := store.GetState("42"); got != StateWaitingCS {
		t.Fatalf("GetState = %s, want %s", got, StateWaitingCS)
	}
	store.SetState("42", StateMainMenu)
	if got := store.GetState("42"); got != StateMainMenu {
		t.Fatalf("GetState = %s, want %s", got, StateMainMenu)
	}
}

func TestArmAndDisarm(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _, timers := testStore(now)

	store.ArmTimeout("42", time.Minute, func() {})

	started, ok := store.ChatStartedAt("42")
	if !ok {
		t.Fatal("expected armed chat record")
	}
	if !started.Equal(now) {
		t.Fatalf("ChatStartedAt = %v, want %v", started, now)
	}

	if !store.DisarmTimeout("42") {
		t.Fatal("DisarmTimeout = false, want true")
	}
	if (*timers)[0].stopped == 0 {
		t.Fatal("expected underlying timer to be stopped")
	}
	if _, ok := store.ChatStartedAt("42"); ok {
		t.Fatal("chat record should be cleared after disarm")
	}
	if store.DisarmTimeout("42") {
		t.Fatal("second DisarmTimeout = true, want false")
	}
}

func TestDisarmWithoutArm(t *testing.T) {
	store, _, _ := testStore(time.Now())
	if store.DisarmTimeout("42") {
		t.Fatal("DisarmTimeout on unknown user = true, want false")
	}
}

func TestFireRunsCallbackOnce(t *testing.T) {
	store, fires, _ := testStore(time.Now())

	var fired int
	store.ArmTimeout("42", time.Minute, func() { fired++ })

	(*fires)[0]()
	(*fires)[0]()

	if fired != 1 {
		t.Fatalf("callback ran %d times, want 1", fired)
	}
	if _, ok := store.ChatStartedAt("42"); ok {
		t.Fatal("chat record should be cleared after fire")
	}
}

func TestDisarmBeatsFire(t *testing.T) {
	store, fires, _ := testStore(time.Now())

	var fired int
	store.ArmTimeout("42", time.Minute, func() { fired++ })

	store.DisarmTimeout("42")
	(*fires)[0]()

	if fired != 0 {
		t.Fatalf("callback ran %d times after disarm, want 0", fired)
	}
}

func TestRearmReplacesTimer(t *testing.T) {
	store, fires, timers := testStore(time.Now())

	var firstFired, secondFired int
	store.ArmTimeout("42", time.Minute, func() { firstFired++ })
	store.ArmTimeout("42", time.Minute, func() { secondFired++ })

	if (*timers)[0].stopped == 0 {
		t.Fatal("expected first timer to be stopped on re-arm")
	}

	// A stale fire from the replaced timer must be a no-op.
	(*fires)[0]()
	if firstFired != 0 {
		t.Fatalf("replaced timer fired %d times, want 0", firstFired)
	}

	(*fires)[1]()
	if secondFired != 1 {
		t.Fatalf("active timer fired %d times, want 1", secondFired)
	}
}

func TestTimersAreIndependentPerUser(t *testing.T) {
	store, fires, _ := testStore(time.Now())

	var aFired, bFired int
	store.ArmTimeout("a", time.Minute, func() { aFired++ })
	store.ArmTimeout("b", time.Minute, func() { bFired++ })

	store.DisarmTimeout("a")
	(*fires)[0]()
	(*fires)[1]()

	if aFired != 0 {
		t.Fatalf("user a fired %d times after disarm, want 0", aFired)
	}
	if bFired != 1 {
		t.Fatalf("user b fired %d times, want 1", bFired)
	}
}
