// Package poller runs the long-poll loop: fetch a batch of updates, dispatch
// them per chat, send the replies and only then advance the offset.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/kamir/goalbot/internal/dialogue"
	"github.com/kamir/goalbot/internal/telegram"
	"golang.org/x/sync/errgroup"
)

// Transport is the provider side of the loop; *telegram.Client implements it.
type Transport interface {
	FetchUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// Handler turns one inbound message into a reply; *dialogue.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, in dialogue.Inbound) (dialogue.Reply, error)
}

// Options configures a Loop.
type Options struct {
	Transport Transport
	Handler   Handler
	Timeout   time.Duration
	Backoff   time.Duration
	// MaxConcurrentChats bounds how many chats of one batch run at once.
	MaxConcurrentChats int
	Logger             *slog.Logger
	// Sleep waits between failed polls; tests replace it.
	Sleep func(ctx context.Context, d time.Duration)
}

// Loop is the update poller. Run must not be called concurrently.
type Loop struct {
	transport   Transport
	handler     Handler
	timeout     time.Duration
	backoff     time.Duration
	concurrency int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration)

	offset int64
}

// NewLoop creates a Loop starting at offset 0.
func NewLoop(opts Options) *Loop {
	timeout := opts.Timeout
	if timeout < time.Second {
		timeout = 60 * time.Second
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	concurrency := opts.MaxConcurrentChats
	if concurrency < 1 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Loop{
		transport:   opts.Transport,
		handler:     opts.Handler,
		timeout:     timeout,
		backoff:     backoff,
		concurrency: concurrency,
		logger:      logger,
		sleep:       sleep,
	}
}

// Offset is the next update id the loop will ask for.
func (l *Loop) Offset() int64 { return l.offset }

// Run polls until ctx is cancelled. Cancellation is observed between
// iterations; a batch that has started is always finished.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("poller_started", "timeout", l.timeout.String(), "max_concurrent_chats", l.concurrency)
	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("poller_stopped", "offset", l.offset)
			return nil
		}
		if err := l.RunOnce(ctx); err != nil {
			var te *telegram.TransportError
			if errors.As(err, &te) && ctx.Err() == nil {
				l.logger.Warn("poller_fetch_failed", "offset", l.offset, "error", err, "backoff", l.backoff.String())
				l.sleep(ctx, l.backoff)
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			return err
		}
	}
}

// RunOnce performs one fetch and processes the whole batch. On a fetch
// failure the offset is left unchanged and the error returned.
func (l *Loop) RunOnce(ctx context.Context) error {
	updates, err := l.transport.FetchUpdates(ctx, l.offset, l.timeout)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	sort.SliceStable(updates, func(i, j int) bool { return updates[i].UpdateID < updates[j].UpdateID })

	// Handlers run detached from ctx so shutdown never interrupts an update
	// halfway through its dialogue step.
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for _, batch := range groupByChat(updates) {
		g.Go(func() error {
			for _, u := range batch {
				l.process(work, u)
			}
			return nil
		})
	}
	_ = g.Wait()

	l.offset = updates[len(updates)-1].UpdateID + 1
	l.logger.Debug("poller_batch_done", "updates", len(updates), "offset", l.offset)
	return nil
}

func (l *Loop) process(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		l.logger.Debug("poller_update_skipped", "update_id", u.UpdateID)
		return
	}
	in := dialogue.Inbound{
		UpdateID: u.UpdateID,
		ChatID:   msg.Chat.ID,
		Username: msg.SenderUsername(),
		Text:     msg.Text,
	}
	reply, err := l.handler.Handle(ctx, in)
	if err != nil {
		l.logger.Error("poller_handle_failed", "chat_id", in.ChatID, "update_id", in.UpdateID, "error", err)
	}
	if reply.Text == "" {
		return
	}
	if _, err := l.transport.SendMessage(ctx, in.ChatID, reply.Text); err != nil {
		l.logger.Error("poller_send_failed", "chat_id", in.ChatID, "update_id", in.UpdateID, "error", err)
	}
}

// groupByChat splits a sorted batch into per-chat runs, keeping update order
// inside each chat. Updates without a chat form their own group.
func groupByChat(updates []telegram.Update) [][]telegram.Update {
	index := make(map[int64]int)
	var groups [][]telegram.Update
	for _, u := range updates {
		chatID := u.Message.ChatID()
		if chatID == 0 {
			groups = append(groups, []telegram.Update{u})
			continue
		}
		i, ok := index[chatID]
		if !ok {
			i = len(groups)
			index[chatID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], u)
	}
	return groups
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
