// Package support implements the message router and handoff state machine
// between end users and the single human CS operator.
package support

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/m3rciful/csbot/core/logger"
	"github.com/m3rciful/csbot/core/support/audit"
	"github.com/m3rciful/csbot/core/support/session"
)

// Inbound is a plain-text message received from the messaging transport.
type Inbound struct {
	// From is the transport-assigned address of the sender.
	From string
	// FromMe marks echoes of our own outbound traffic.
	FromMe bool
	Text   string
}

// Sender delivers outbound text through the messaging transport.
type Sender interface {
	SendMessage(ctx context.Context, recipient, text string) error
}

// HandlerFunc consumes messages the router does not classify as CS traffic.
type HandlerFunc func(ctx context.Context, msg Inbound) error

// Options configures a Router.
type Options struct {
	// OperatorID is the transport address of the CS operator.
	OperatorID string
	// ResponseTimeout bounds how long a user waits in waiting_cs.
	ResponseTimeout time.Duration

	WaitNotice    string
	TimeoutNotice string
	// RequestNotice must contain a %s placeholder for the user id.
	RequestNotice string
	UsageError    string
}

// Fixed texts that belong to the relay protocol rather than configuration.
const (
	forwardFormat = "[Pesan dari %s]: %s"

	acceptNoticeUser = "Anda sudah terhubung dengan customer service kami. Silakan kirim pesan Anda."
	acceptNoticeCS   = "Anda terhubung dengan %s."
	closeNoticeUser  = "Sesi chat dengan customer service telah berakhir. Terima kasih!"
	closeNoticeCS    = "Sesi chat dengan %s telah ditutup."
	noSessionNotice  = "Tidak ada sesi chat aktif untuk %s."
)

// Operator message grammar. Reply keeps the original relay format; Accept
// and Close are the explicit operator controls that make chatting_cs
// reachable without auto-promoting on a reply.
var (
	replyPattern  = regexp.MustCompile(`User: (.+?); Reply: (.+)`)
	acceptPattern = regexp.MustCompile(`^User: (.+?); Accept$`)
	closePattern  = regexp.MustCompile(`^User: (.+?); Close$`)
)

// Router classifies inbound messages and drives the handoff state machine.
type Router struct {
	opts     Options
	store    session.Store
	sender   Sender
	fallback HandlerFunc
	recorder audit.Recorder
}

// NewRouter wires the router. fallback and recorder may be nil: without a
// fallback unclassified messages are dropped after logging, without a
// recorder interactions are only logged.
func NewRouter(opts Options, store session.Store, sender Sender, fallback HandlerFunc, recorder audit.Recorder) *Router {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 5 * time.Minute
	}
	return &Router{
		opts:     opts,
		store:    store,
		sender:   sender,
		fallback: fallback,
		recorder: recorder,
	}
}

// OperatorID returns the configured operator address.
func (r *Router) OperatorID() string {
	return r.opts.OperatorID
}

// HandleInbound classifies one inbound message and runs the matching branch.
// Failures are logged and swallowed so the next message is never blocked.
func (r *Router) HandleInbound(ctx context.Context, msg Inbound) error {
	// Echoes of our own traffic are not actionable unless the operator
	// account is driving the bot.
	if msg.FromMe && msg.From != r.opts.OperatorID {
		logger.Debug(ctx, "support", "inbound.discarded",
			slog.String("user_id", msg.From),
			slog.String("cause", "from_me"),
		)
		return nil
	}

	if msg.From == r.opts.OperatorID {
		r.handleOperatorMessage(ctx, msg.Text)
		return nil
	}

	if r.store.GetState(msg.From) == session.StateChattingCS {
		r.forwardToOperator(ctx, msg.From, msg.Text)
		return nil
	}

	if r.fallback == nil {
		logger.Debug(ctx, "support", "inbound.unhandled",
			slog.String("user_id", msg.From),
		)
		return nil
	}
	if err := r.fallback(ctx, msg); err != nil {
		logger.ErrorWithContext(ctx, err, "support", "HandleInbound",
			slog.String("user_id", msg.From),
		)
	}
	return nil
}

// handleOperatorMessage parses the operator's control grammar. Anything that
// does not match gets the fixed usage instruction back.
func (r *Router) handleOperatorMessage(ctx context.Context, text string) {
	if m := acceptPattern.FindStringSubmatch(text); m != nil {
		r.AcceptChat(ctx, m[1])
		return
	}
	if m := closePattern.FindStringSubmatch(text); m != nil {
		r.CloseChat(ctx, m[1])
		return
	}

	m := replyPattern.FindStringSubmatch(text)
	if m == nil {
		r.send(ctx, r.opts.OperatorID, r.opts.UsageError, "handleOperatorMessage")
		return
	}
	userID, reply := m[1], m[2]

	// Relay verbatim; a reply never changes the user's state.
	if !r.send(ctx, userID, reply, "handleOperatorMessage") {
		return
	}
	logger.CSInteraction(ctx, "cs_to_user", userID, r.opts.OperatorID, reply)
	r.record(ctx, "cs_to_user", userID, reply)
}

// forwardToOperator relays an in-chat user message to the operator with the
// sender annotation. The user gets no reply.
func (r *Router) forwardToOperator(ctx context.Context, userID, text string) {
	formatted := fmt.Sprintf(forwardFormat, userID, text)
	if !r.send(ctx, r.opts.OperatorID, formatted, "forwardToOperator") {
		return
	}
	logger.CSInteraction(ctx, "user_to_cs", userID, r.opts.OperatorID, text)
	r.record(ctx, "user_to_cs", userID, text)
}

// StartChat transitions a user into waiting_cs, notifies both parties and
// arms the response timeout. It is re-entrant: calling it again re-sends the
// notices and replaces the running timer.
func (r *Router) StartChat(ctx context.Context, userID string) {
	r.store.SetState(userID, session.StateWaitingCS)

	if !r.send(ctx, userID, r.opts.WaitNotice, "StartChat") {
		return
	}
	if !r.send(ctx, r.opts.OperatorID, fmt.Sprintf(r.opts.RequestNotice, userID), "StartChat") {
		return
	}

	r.store.ArmTimeout(userID, r.opts.ResponseTimeout, func() {
		r.handleTimeout(userID)
	})

	logger.CSInteraction(ctx, "chat_request", userID, r.opts.OperatorID, "Chat request initiated")
	r.record(ctx, "chat_request", userID, "Chat request initiated")
}

// handleTimeout runs from the timer goroutine. The state check guards
// against acting on a stale precondition: an accept or close that raced the
// firing timer wins.
func (r *Router) handleTimeout(userID string) {
	ctx := logger.WithHandler(context.Background(), "cs_timeout")
	if r.store.GetState(userID) != session.StateWaitingCS {
		return
	}

	r.send(ctx, userID, r.opts.TimeoutNotice, "handleTimeout")
	r.store.SetState(userID, session.StateMainMenu)
	r.store.DisarmTimeout(userID)

	logger.CSInteraction(ctx, "cs_timeout", userID, r.opts.OperatorID, "CS response timeout")
	r.record(ctx, "cs_timeout", userID, "CS response timeout")
}

// AcceptChat promotes a waiting user to chatting_cs and disarms the timer.
func (r *Router) AcceptChat(ctx context.Context, userID string) {
	if r.store.GetState(userID) != session.StateWaitingCS {
		r.send(ctx, r.opts.OperatorID, fmt.Sprintf(noSessionNotice, userID), "AcceptChat")
		return
	}

	r.store.DisarmTimeout(userID)
	r.store.SetState(userID, session.StateChattingCS)
	r.send(ctx, userID, acceptNoticeUser, "AcceptChat")
	r.send(ctx, r.opts.OperatorID, fmt.Sprintf(acceptNoticeCS, userID), "AcceptChat")

	logger.CSInteraction(ctx, "chat_accept", userID, r.opts.OperatorID, "Chat accepted")
	r.record(ctx, "chat_accept", userID, "Chat accepted")
}

// CloseChat ends a waiting or active chat and demotes the user to the menu.
func (r *Router) CloseChat(ctx context.Context, userID string) {
	st := r.store.GetState(userID)
	if st != session.StateWaitingCS && st != session.StateChattingCS {
		r.send(ctx, r.opts.OperatorID, fmt.Sprintf(noSessionNotice, userID), "CloseChat")
		return
	}

	r.store.DisarmTimeout(userID)
	r.store.SetState(userID, session.StateMainMenu)
	r.send(ctx, userID, closeNoticeUser, "CloseChat")
	r.send(ctx, r.opts.OperatorID, fmt.Sprintf(closeNoticeCS, userID), "CloseChat")

	logger.CSInteraction(ctx, "chat_close", userID, r.opts.OperatorID, "Chat closed")
	r.record(ctx, "chat_close", userID, "Chat closed")
}

// send wraps every transport call: a failure is logged with the originating
// method and swallowed, degrading that step to a no-op.
func (r *Router) send(ctx context.Context, recipient, text, method string) bool {
	if err := r.sender.SendMessage(ctx, recipient, text); err != nil {
		logger.ErrorWithContext(ctx, err, "support", method,
			slog.String("operation", "sendMessage"),
			slog.String("user_id", recipient),
		)
		return false
	}
	return true
}

func (r *Router) record(ctx context.Context, kind, userID, message string) {
	if r.recorder == nil {
		return
	}
	it := audit.Interaction{
		Type:       kind,
		UserID:     userID,
		CSID:       r.opts.OperatorID,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.recorder.Record(ctx, it); err != nil {
		logger.ErrorWithContext(ctx, err, "support", "record",
			slog.String("user_id", userID),
		)
	}
}
