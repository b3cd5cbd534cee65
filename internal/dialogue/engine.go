// Package dialogue implements the chat command state machine: listing goals
// and the two-step /create flow (category, then title).
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kamir/goalbot/internal/domain"
	"github.com/kamir/goalbot/internal/events"
	"github.com/kamir/goalbot/internal/session"
)

// Backend is the goal service the engine reads from and writes to.
type Backend interface {
	ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error)
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	CreateGoal(ctx context.Context, userID, categoryID int64, title string) (int64, error)
}

// Identities resolves chats to users; *identity.Resolver implements it.
type Identities interface {
	Resolve(ctx context.Context, chatID int64, username string) (*domain.ChatIdentity, error)
	EnsureVerificationCode(ctx context.Context, id *domain.ChatIdentity) (string, error)
	IsVerified(id *domain.ChatIdentity) bool
}

// DialogueError reports a collaborator failure while handling a message.
// The chat's session is left as it was before the message.
type DialogueError struct {
	ChatID int64
	Stage  session.Stage
	Op     string
	Err    error
}

func (e *DialogueError) Error() string {
	return fmt.Sprintf("dialogue chat=%d stage=%s op=%s: %v", e.ChatID, e.Stage, e.Op, e.Err)
}

func (e *DialogueError) Unwrap() error { return e.Err }

// Inbound is one chat message handed to the engine.
type Inbound struct {
	UpdateID int64
	ChatID   int64
	Username string
	Text     string
}

// Reply is the message to send back. An empty Text means nothing to send.
type Reply struct {
	ChatID int64
	Text   string
}

// Options configures an Engine.
type Options struct {
	Identities Identities
	Backend    Backend
	Sessions   *session.Store
	Events     events.Publisher
	Logger     *slog.Logger
}

// Engine drives one chat message to a reply and the next session state.
type Engine struct {
	identities Identities
	backend    Backend
	sessions   *session.Store
	events     events.Publisher
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore()
	}
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		identities: opts.Identities,
		backend:    opts.Backend,
		sessions:   sessions,
		events:     pub,
		logger:     logger,
	}
}

// Sessions exposes the engine's session store.
func (e *Engine) Sessions() *session.Store { return e.sessions }

// Handle processes one message. On a *DialogueError the returned Reply holds
// a generic failure notice for the user and the session is unchanged.
// Messages of the same chat are serialized; other chats proceed in parallel.
func (e *Engine) Handle(ctx context.Context, in Inbound) (Reply, error) {
	unlock := e.sessions.Lock(in.ChatID)
	defer unlock()

	text, err := e.handleLocked(ctx, in)
	if err != nil {
		var de *DialogueError
		if errors.As(err, &de) {
			e.publish(ctx, events.New(events.TypeDialogueFailed, in.ChatID, 0, events.DialogueFailedPayload{
				Stage: de.Stage.String(),
				Op:    de.Op,
				Error: de.Err.Error(),
			}))
		}
		return Reply{ChatID: in.ChatID, Text: MsgFailure}, err
	}
	return Reply{ChatID: in.ChatID, Text: text}, nil
}

func (e *Engine) handleLocked(ctx context.Context, in Inbound) (string, error) {
	id, err := e.identities.Resolve(ctx, in.ChatID, in.Username)
	if err != nil {
		return "", &DialogueError{ChatID: in.ChatID, Op: "resolve_identity", Err: err}
	}

	if !e.identities.IsVerified(id) {
		// Unverified chats never touch the session store.
		code, err := e.identities.EnsureVerificationCode(ctx, id)
		if err != nil {
			return "", &DialogueError{ChatID: in.ChatID, Op: "issue_verification_code", Err: err}
		}
		e.publish(ctx, events.New(events.TypeVerificationIssued, in.ChatID, 0, nil))
		return verificationText(code), nil
	}

	sess, _ := e.sessions.Get(in.ChatID)
	next, text, err := e.step(ctx, id, sess, strings.TrimSpace(in.Text))
	if err != nil {
		return "", err
	}
	if next.Stage == session.StageIdle {
		e.sessions.Clear(in.ChatID)
	} else {
		e.sessions.Set(in.ChatID, next)
	}
	e.logger.Debug("dialogue_step",
		"chat_id", in.ChatID,
		"update_id", in.UpdateID,
		"from", sess.Stage.String(),
		"to", next.Stage.String(),
	)
	return text, nil
}

// step computes the next session and reply for a verified chat. It never
// writes to the store; Handle persists the returned session.
func (e *Engine) step(ctx context.Context, id *domain.ChatIdentity, sess session.Session, text string) (session.Session, string, error) {
	if text == CmdCancel {
		return session.Session{}, MsgCancelled, nil
	}

	switch sess.Stage {
	case session.StageAwaitingCategory:
		cat, ok := sess.Candidate(text)
		if !ok {
			return sess, categoriesText(MsgInvalidCategory, sess.Candidates), nil
		}
		next := sess
		next.Stage = session.StageAwaitingTitle
		next.ChosenCategoryID = cat.ID
		return next, MsgAskTitle, nil

	case session.StageAwaitingTitle:
		if text == "" || isCommand(text) {
			return sess, MsgAskTitleAgain, nil
		}
		goalID, err := e.backend.CreateGoal(ctx, id.UserID, sess.ChosenCategoryID, text)
		if err != nil {
			return sess, "", &DialogueError{ChatID: id.ChatID, Stage: sess.Stage, Op: "create_goal", Err: err}
		}
		e.logger.Info("goal_created", "chat_id", id.ChatID, "user_id", id.UserID, "goal_id", goalID, "category_id", sess.ChosenCategoryID)
		e.publish(ctx, events.New(events.TypeGoalCreated, id.ChatID, id.UserID, events.GoalCreatedPayload{
			GoalID:     goalID,
			CategoryID: sess.ChosenCategoryID,
			Title:      text,
		}))
		return session.Session{}, goalCreatedText(text), nil
	}

	// Idle
	switch text {
	case CmdGoals:
		goals, err := e.backend.ListGoals(ctx, id.UserID)
		if err != nil {
			return sess, "", &DialogueError{ChatID: id.ChatID, Stage: sess.Stage, Op: "list_goals", Err: err}
		}
		return session.Session{}, goalsText(goals), nil

	case CmdCreate:
		cats, err := e.backend.ListCategories(ctx, id.UserID)
		if err != nil {
			return sess, "", &DialogueError{ChatID: id.ChatID, Stage: sess.Stage, Op: "list_categories", Err: err}
		}
		if len(cats) == 0 {
			return session.Session{}, MsgNoCategories, nil
		}
		next := session.Session{Stage: session.StageAwaitingCategory, Candidates: cats}
		return next, categoriesText(MsgChooseCategory, cats), nil

	case CmdStart, CmdHelp:
		return session.Session{}, MsgHelp, nil
	}
	return session.Session{}, unknownCommandText(), nil
}

func (e *Engine) publish(ctx context.Context, evt events.Event) {
	if err := e.events.Publish(ctx, evt); err != nil {
		e.logger.Warn("event_publish_failed", "type", evt.Type, "chat_id", evt.ChatID, "error", err)
	}
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}
