package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/csbot/core/support/audit"
	"github.com/m3rciful/csbot/core/support/session"
)

const (
	testOperator = "999"
	testUser     = "111"
)

type stateCall struct {
	userID string
	state  session.State
}

type sentMessage struct {
	recipient string
	text      string
}

type fakeStore struct {
	states    map[string]session.State
	setCalls  []stateCall
	armed     map[string]func()
	armCount  int
	disarmed  []string
	startedAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states: make(map[string]session.State),
		armed:  make(map[string]func()),
	}
}

func (s *fakeStore) GetState(userID string) session.State {
	if st, ok := s.states[userID]; ok {
		return st
	}
	return session.StateMainMenu
}

func (s *fakeStore) SetState(userID string, st session.State) {
	s.states[userID] = st
	s.setCalls = append(s.setCalls, stateCall{userID: userID, state: st})
}

func (s *fakeStore) ArmTimeout(userID string, _ time.Duration, onFire func()) session.Timer {
	s.armCount++
	s.armed[userID] = onFire
	s.startedAt = time.Now()
	return noopTimer{}
}

func (s *fakeStore) DisarmTimeout(userID string) bool {
	s.disarmed = append(s.disarmed, userID)
	_, ok := s.armed[userID]
	delete(s.armed, userID)
	return ok
}

func (s *fakeStore) ChatStartedAt(string) (time.Time, bool) {
	return s.startedAt, !s.startedAt.IsZero()
}

// fire simulates the armed timer firing once, the way the real store invokes
// the callback from its timer goroutine.
func (s *fakeStore) fire(userID string) {
	if fn, ok := s.armed[userID]; ok {
		delete(s.armed, userID)
		fn()
	}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

type fakeSender struct {
	sent    []sentMessage
	failFor map[string]error
}

func (f *fakeSender) SendMessage(_ context.Context, recipient, text string) error {
	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{recipient: recipient, text: text})
	return nil
}

func (f *fakeSender) sentTo(recipient string) []string {
	var out []string
	for _, m := range f.sent {
		if m.recipient == recipient {
			out = append(out, m.text)
		}
	}
	return out
}

type fakeRecorder struct {
	records []audit.Interaction
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, it audit.Interaction) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, it)
	return nil
}

func testRouter(fallback HandlerFunc) (*Router, *fakeStore, *fakeSender, *fakeRecorder) {
	store := newFakeStore()
	sender := &fakeSender{failFor: make(map[string]error)}
	recorder := &fakeRecorder{}
	router := NewRouter(Options{
		OperatorID:      testOperator,
		ResponseTimeout: time.Minute,
		WaitNotice:      "please wait",
		TimeoutNotice:   "cs busy",
		RequestNotice:   "new request from %s",
		UsageError:      "bad format",
	}, store, sender, fallback, recorder)
	return router, store, sender, recorder
}

func TestOperatorReplyRelaysWithoutStateChange(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)
	store.states[testUser] = session.StateWaitingCS

	msg := Inbound{From: testOperator, FromMe: true, Text: "User: 111; Reply: halo, ada yang bisa dibantu?"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got := sender.sentTo(testUser)
	if len(got) != 1 || got[0] != "halo, ada yang bisa dibantu?" {
		t.Fatalf("sent to user = %v, want the reply verbatim", got)
	}
	if len(store.setCalls) != 0 {
		t.Fatalf("state changes = %v, want none", store.setCalls)
	}
	if store.armCount != 0 || len(store.disarmed) != 0 {
		t.Fatal("reply must not touch timers")
	}
	if len(recorder.records) != 1 || recorder.records[0].Type != "cs_to_user" {
		t.Fatalf("records = %v, want one cs_to_user", recorder.records)
	}
}

func TestOperatorBadFormatGetsUsageError(t *testing.T) {
	router, store, sender, _ := testRouter(nil)

	msg := Inbound{From: testOperator, Text: "reply 111 halo"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got := sender.sentTo(testOperator)
	if len(got) != 1 || got[0] != "bad format" {
		t.Fatalf("sent to operator = %v, want the usage error", got)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("total sends = %d, want 1", len(sender.sent))
	}
	if len(store.setCalls) != 0 {
		t.Fatalf("state changes = %v, want none", store.setCalls)
	}
}

func TestFromMeNonOperatorDiscarded(t *testing.T) {
	fallbackCalled := false
	router, store, sender, _ := testRouter(func(context.Context, Inbound) error {
		fallbackCalled = true
		return nil
	})

	msg := Inbound{From: "555", FromMe: true, Text: "echo"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if len(sender.sent) != 0 {
		t.Fatalf("sends = %v, want none", sender.sent)
	}
	if len(store.setCalls) != 0 {
		t.Fatalf("state changes = %v, want none", store.setCalls)
	}
	if fallbackCalled {
		t.Fatal("fallback must not run for discarded echoes")
	}
}

func TestChattingUserForwardedToOperator(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)
	store.states[testUser] = session.StateChattingCS

	msg := Inbound{From: testUser, Text: "produk saya belum sampai"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	want := fmt.Sprintf("[Pesan dari %s]: produk saya belum sampai", testUser)
	got := sender.sentTo(testOperator)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("sent to operator = %v, want %q", got, want)
	}
	if len(sender.sentTo(testUser)) != 0 {
		t.Fatal("user must not receive a reply on forward")
	}
	if len(store.setCalls) != 0 {
		t.Fatalf("state changes = %v, want none", store.setCalls)
	}
	if len(recorder.records) != 1 || recorder.records[0].Type != "user_to_cs" {
		t.Fatalf("records = %v, want one user_to_cs", recorder.records)
	}
}

func TestMenuUserDelegatedToFallback(t *testing.T) {
	var delegated []Inbound
	router, _, sender, _ := testRouter(func(_ context.Context, msg Inbound) error {
		delegated = append(delegated, msg)
		return nil
	})

	msg := Inbound{From: testUser, Text: "halo"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if len(delegated) != 1 || delegated[0].Text != "halo" {
		t.Fatalf("delegated = %v, want the original message", delegated)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sends = %v, want none from router itself", sender.sent)
	}
}

func TestFallbackErrorIsSwallowed(t *testing.T) {
	router, _, _, _ := testRouter(func(context.Context, Inbound) error {
		return errors.New("handler blew up")
	})

	msg := Inbound{From: testUser, Text: "halo"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound = %v, want nil", err)
	}
}

func TestStartChatSequence(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)

	router.StartChat(context.Background(), testUser)

	if got := store.GetState(testUser); got != session.StateWaitingCS {
		t.Fatalf("state = %s, want %s", got, session.StateWaitingCS)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sends = %v, want wait notice then request notice", sender.sent)
	}
	if sender.sent[0].recipient != testUser || sender.sent[0].text != "please wait" {
		t.Fatalf("first send = %v, want wait notice to user", sender.sent[0])
	}
	wantNotice := fmt.Sprintf("new request from %s", testUser)
	if sender.sent[1].recipient != testOperator || sender.sent[1].text != wantNotice {
		t.Fatalf("second send = %v, want %q to operator", sender.sent[1], wantNotice)
	}
	if store.armCount != 1 {
		t.Fatalf("armCount = %d, want 1", store.armCount)
	}
	if len(recorder.records) != 1 || recorder.records[0].Type != "chat_request" {
		t.Fatalf("records = %v, want one chat_request", recorder.records)
	}
}

func TestStartChatAbortsWhenUserUnreachable(t *testing.T) {
	router, store, sender, _ := testRouter(nil)
	sender.failFor[testUser] = errors.New("blocked")

	router.StartChat(context.Background(), testUser)

	if len(sender.sentTo(testOperator)) != 0 {
		t.Fatal("operator must not be notified when the user send fails")
	}
	if store.armCount != 0 {
		t.Fatal("timer must not be armed when the user send fails")
	}
}

func TestTimeoutDemotesWaitingUserOnce(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)

	router.StartChat(context.Background(), testUser)
	store.fire(testUser)

	if got := store.GetState(testUser); got != session.StateMainMenu {
		t.Fatalf("state = %s, want %s", got, session.StateMainMenu)
	}
	timeoutNotices := 0
	for _, text := range sender.sentTo(testUser) {
		if text == "cs busy" {
			timeoutNotices++
		}
	}
	if timeoutNotices != 1 {
		t.Fatalf("timeout notices = %d, want 1", timeoutNotices)
	}

	// A stale second invocation finds the user already demoted and must do
	// nothing.
	before := len(sender.sent)
	router.handleTimeout(testUser)
	if len(sender.sent) != before {
		t.Fatalf("extra sends after stale timeout: %v", sender.sent[before:])
	}

	var kinds []string
	for _, r := range recorder.records {
		kinds = append(kinds, r.Type)
	}
	if strings.Join(kinds, ",") != "chat_request,cs_timeout" {
		t.Fatalf("records = %v, want chat_request then cs_timeout", kinds)
	}
}

func TestTimeoutSkipsUserNoLongerWaiting(t *testing.T) {
	router, store, sender, _ := testRouter(nil)

	router.StartChat(context.Background(), testUser)
	store.SetState(testUser, session.StateChattingCS)
	before := len(sender.sent)

	store.fire(testUser)

	if len(sender.sent) != before {
		t.Fatalf("extra sends: %v", sender.sent[before:])
	}
	if got := store.GetState(testUser); got != session.StateChattingCS {
		t.Fatalf("state = %s, want %s untouched", got, session.StateChattingCS)
	}
}

func TestAcceptPromotesWaitingUser(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)
	router.StartChat(context.Background(), testUser)

	msg := Inbound{From: testOperator, Text: "User: 111; Accept"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if got := store.GetState(testUser); got != session.StateChattingCS {
		t.Fatalf("state = %s, want %s", got, session.StateChattingCS)
	}
	if len(store.disarmed) == 0 || store.disarmed[len(store.disarmed)-1] != testUser {
		t.Fatal("accept must disarm the response timeout")
	}
	last := recorder.records[len(recorder.records)-1]
	if last.Type != "chat_accept" {
		t.Fatalf("last record = %s, want chat_accept", last.Type)
	}
	if len(sender.sentTo(testUser)) < 2 {
		t.Fatal("user should be told the chat is connected")
	}

	// The demotion timer was disarmed: a stale fire must change nothing.
	store.fire(testUser)
	if got := store.GetState(testUser); got != session.StateChattingCS {
		t.Fatalf("state after stale fire = %s, want %s", got, session.StateChattingCS)
	}
}

func TestAcceptWithoutSessionNotifiesOperator(t *testing.T) {
	router, store, sender, _ := testRouter(nil)

	msg := Inbound{From: testOperator, Text: "User: 111; Accept"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got := sender.sentTo(testOperator)
	if len(got) != 1 || !strings.Contains(got[0], testUser) {
		t.Fatalf("sent to operator = %v, want a no-session notice naming the user", got)
	}
	if len(store.setCalls) != 0 {
		t.Fatalf("state changes = %v, want none", store.setCalls)
	}
}

func TestCloseEndsActiveChat(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)
	store.states[testUser] = session.StateChattingCS

	msg := Inbound{From: testOperator, Text: "User: 111; Close"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if got := store.GetState(testUser); got != session.StateMainMenu {
		t.Fatalf("state = %s, want %s", got, session.StateMainMenu)
	}
	if len(sender.sentTo(testUser)) != 1 {
		t.Fatal("user should be told the chat ended")
	}
	last := recorder.records[len(recorder.records)-1]
	if last.Type != "chat_close" {
		t.Fatalf("last record = %s, want chat_close", last.Type)
	}
}

func TestRecorderFailureDoesNotBlockRelay(t *testing.T) {
	router, store, sender, recorder := testRouter(nil)
	recorder.err = errors.New("db down")
	store.states[testUser] = session.StateChattingCS

	msg := Inbound{From: testUser, Text: "halo"}
	if err := router.HandleInbound(context.Background(), msg); err != nil {
		t.Fatalf("HandleInbound = %v, want nil", err)
	}
	if len(sender.sentTo(testOperator)) != 1 {
		t.Fatal("forward must still happen when recording fails")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{failFor: make(map[string]error)}
	router := NewRouter(Options{
		OperatorID:    testOperator,
		WaitNotice:    "please wait",
		RequestNotice: "new request from %s",
	}, store, sender, nil, nil)

	router.StartChat(context.Background(), testUser)
	if store.armCount != 1 {
		t.Fatalf("armCount = %d, want 1", store.armCount)
	}
}
