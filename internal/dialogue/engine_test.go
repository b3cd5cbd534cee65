package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kamir/goalbot/internal/domain"
	"github.com/kamir/goalbot/internal/events"
	"github.com/kamir/goalbot/internal/logging"
	"github.com/kamir/goalbot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createdGoal struct {
	CategoryID int64
	Title      string
}

type fakeBackend struct {
	mu         sync.Mutex
	goals      []domain.Goal
	categories []domain.Category
	created    []createdGoal
	createErr  error
	listErr    error
	nextID     int64
}

func (b *fakeBackend) ListGoals(_ context.Context, _ int64) ([]domain.Goal, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.goals, nil
}

func (b *fakeBackend) ListCategories(_ context.Context, _ int64) ([]domain.Category, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.categories, nil
}

func (b *fakeBackend) CreateGoal(_ context.Context, _ int64, categoryID int64, title string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return 0, b.createErr
	}
	b.nextID++
	b.created = append(b.created, createdGoal{CategoryID: categoryID, Title: title})
	return b.nextID, nil
}

type fakeIdentities struct {
	verified   map[int64]bool
	codes      int
	resolveErr error
}

func (f *fakeIdentities) Resolve(_ context.Context, chatID int64, username string) (*domain.ChatIdentity, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	id := &domain.ChatIdentity{ChatID: chatID, Username: username}
	if f.verified[chatID] {
		id.UserID = 100 + chatID
	}
	return id, nil
}

func (f *fakeIdentities) EnsureVerificationCode(_ context.Context, id *domain.ChatIdentity) (string, error) {
	f.codes++
	id.VerificationCode = "CODE"
	return id.VerificationCode, nil
}

func (f *fakeIdentities) IsVerified(id *domain.ChatIdentity) bool { return id.IsVerified() }

func newTestEngine(b *fakeBackend, verified ...int64) (*Engine, *fakeIdentities, *events.ChannelPublisher) {
	ids := &fakeIdentities{verified: map[int64]bool{}}
	for _, c := range verified {
		ids.verified[c] = true
	}
	pub := events.NewChannelPublisher(16)
	e := NewEngine(Options{
		Identities: ids,
		Backend:    b,
		Events:     pub,
		Logger:     logging.Discard(),
	})
	return e, ids, pub
}

func send(t *testing.T, e *Engine, chatID int64, text string) Reply {
	t.Helper()
	r, err := e.Handle(context.Background(), Inbound{ChatID: chatID, Text: text})
	require.NoError(t, err)
	assert.Equal(t, chatID, r.ChatID)
	return r
}

func stage(e *Engine, chatID int64) session.Stage {
	s, _ := e.Sessions().Get(chatID)
	return s.Stage
}

func TestGoalsEmpty(t *testing.T) {
	e, _, _ := newTestEngine(&fakeBackend{}, 1)
	assert.Equal(t, "no goals", send(t, e, 1, "/goals").Text)
}

func TestGoalsListing(t *testing.T) {
	b := &fakeBackend{goals: []domain.Goal{{ID: 5, Title: "Run 5k"}, {ID: 7, Title: "Read"}}}
	e, _, _ := newTestEngine(b, 1)
	assert.Equal(t, "5 - Run 5k\n7 - Read", send(t, e, 1, "/goals").Text)
	assert.Equal(t, session.StageIdle, stage(e, 1))
}

func TestCreateFlow(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}, {ID: 4, Title: "Work"}}}
	e, _, pub := newTestEngine(b, 1)

	r := send(t, e, 1, "/create")
	assert.Equal(t, "choose a category (send its number):\n3 - Health\n4 - Work", r.Text)
	assert.Equal(t, session.StageAwaitingCategory, stage(e, 1))

	r = send(t, e, 1, "3")
	assert.Equal(t, MsgAskTitle, r.Text)
	assert.Equal(t, session.StageAwaitingTitle, stage(e, 1))

	r = send(t, e, 1, "  Run 5k ")
	assert.Equal(t, `goal "Run 5k" created`, r.Text)
	assert.Equal(t, session.StageIdle, stage(e, 1))
	assert.Equal(t, 0, e.Sessions().Len())

	require.Len(t, b.created, 1)
	assert.Equal(t, createdGoal{CategoryID: 3, Title: "Run 5k"}, b.created[0])

	evt := <-pub.Events()
	assert.Equal(t, events.TypeGoalCreated, evt.Type)
	assert.Equal(t, int64(101), evt.UserID)
}

func TestCreateWithoutCategories(t *testing.T) {
	e, _, _ := newTestEngine(&fakeBackend{}, 1)
	assert.Equal(t, MsgNoCategories, send(t, e, 1, "/create").Text)
	assert.Equal(t, session.StageIdle, stage(e, 1))
}

func TestInvalidCategoryReprompts(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, _, _ := newTestEngine(b, 1)
	send(t, e, 1, "/create")

	for _, text := range []string{"9", "Health", "/goals", ""} {
		r := send(t, e, 1, text)
		assert.Equal(t, "invalid category, choose again:\n3 - Health", r.Text, "input %q", text)
		assert.Equal(t, session.StageAwaitingCategory, stage(e, 1))
	}
	assert.Empty(t, b.created)
}

func TestTitleRejectsCommandsAndBlank(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, _, _ := newTestEngine(b, 1)
	send(t, e, 1, "/create")
	send(t, e, 1, "3")

	assert.Equal(t, MsgAskTitleAgain, send(t, e, 1, "   ").Text)
	assert.Equal(t, MsgAskTitleAgain, send(t, e, 1, "/goals").Text)
	assert.Equal(t, session.StageAwaitingTitle, stage(e, 1))
	assert.Empty(t, b.created)
}

func TestCancel(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, _, _ := newTestEngine(b, 1)

	// no session yet
	assert.Equal(t, "operation cancelled", send(t, e, 1, "/cancel").Text)

	send(t, e, 1, "/create")
	assert.Equal(t, MsgCancelled, send(t, e, 1, "/cancel").Text)
	assert.Equal(t, session.StageIdle, stage(e, 1))

	send(t, e, 1, "/create")
	send(t, e, 1, "3")
	assert.Equal(t, MsgCancelled, send(t, e, 1, "/cancel").Text)
	assert.Equal(t, session.StageIdle, stage(e, 1))
	assert.Empty(t, b.created)
}

func TestUnknownAndHelp(t *testing.T) {
	e, _, _ := newTestEngine(&fakeBackend{}, 1)
	assert.Equal(t, MsgHelp, send(t, e, 1, "/start").Text)
	assert.Equal(t, MsgHelp, send(t, e, 1, "/help").Text)
	assert.Equal(t, unknownCommandText(), send(t, e, 1, "hello").Text)
}

func TestUnverifiedChatGetsCode(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, ids, pub := newTestEngine(b)

	for _, text := range []string{"/goals", "/create", "3", "hi"} {
		r := send(t, e, 9, text)
		assert.Contains(t, r.Text, "CODE")
		assert.Equal(t, 0, e.Sessions().Len())
	}
	assert.Equal(t, 4, ids.codes)
	assert.Empty(t, b.created)
	assert.Equal(t, events.TypeVerificationIssued, (<-pub.Events()).Type)
}

func TestChatsAreIndependent(t *testing.T) {
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, _, _ := newTestEngine(b, 1, 2)

	send(t, e, 1, "/create")
	send(t, e, 2, "/goals")
	assert.Equal(t, session.StageAwaitingCategory, stage(e, 1))
	assert.Equal(t, session.StageIdle, stage(e, 2))

	send(t, e, 2, "/create")
	send(t, e, 2, "3")
	assert.Equal(t, session.StageAwaitingCategory, stage(e, 1))
	assert.Equal(t, session.StageAwaitingTitle, stage(e, 2))
}

func TestFailureLeavesSessionUnchanged(t *testing.T) {
	boom := errors.New("db down")
	b := &fakeBackend{categories: []domain.Category{{ID: 3, Title: "Health"}}}
	e, _, pub := newTestEngine(b, 1)
	send(t, e, 1, "/create")
	send(t, e, 1, "3")

	b.createErr = boom
	r, err := e.Handle(context.Background(), Inbound{ChatID: 1, Text: "Run"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var de *DialogueError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "create_goal", de.Op)
	assert.Equal(t, session.StageAwaitingTitle, de.Stage)
	assert.Equal(t, MsgFailure, r.Text)

	got, ok := e.Sessions().Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StageAwaitingTitle, got.Stage)
	assert.Equal(t, int64(3), got.ChosenCategoryID)

	assert.Equal(t, events.TypeDialogueFailed, (<-pub.Events()).Type)

	// retry after recovery completes the flow
	b.createErr = nil
	assert.Equal(t, `goal "Run" created`, send(t, e, 1, "Run").Text)
	require.Len(t, b.created, 1)
}

func TestResolveFailure(t *testing.T) {
	e, ids, _ := newTestEngine(&fakeBackend{}, 1)
	ids.resolveErr = errors.New("no db")

	r, err := e.Handle(context.Background(), Inbound{ChatID: 1, Text: "/goals"})
	var de *DialogueError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "resolve_identity", de.Op)
	assert.Equal(t, MsgFailure, r.Text)
}

func TestListFailureInIdle(t *testing.T) {
	b := &fakeBackend{listErr: errors.New("timeout")}
	e, _, _ := newTestEngine(b, 1)

	_, err := e.Handle(context.Background(), Inbound{ChatID: 1, Text: "/create"})
	var de *DialogueError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "list_categories", de.Op)
	assert.Equal(t, 0, e.Sessions().Len())
}
