package adapter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "rallybot/internal/runtime/supervisor"
	"rallybot/internal/transport"
	logx "rallybot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter bridges Telegram long polling to the transport.Messenger contract.
// Inbound text lands on the Start() output channel; a full channel drops
// updates and reports the count periodically instead of logging per update.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	out     atomic.Value // chan<- transport.Update
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	dropped uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log.With(logx.String("component", "telegram")), bot: b}
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Forward to the CURRENT output channel; Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.forward(transport.Update{
			UserID:   strconv.FormatInt(m.Sender.ID, 10),
			Username: m.Sender.Username,
			Text:     m.Text,
			At:       m.Time(),
		})
		return nil
	})
}

func (a *Adapter) forward(up transport.Update) {
	out, _ := a.out.Load().(chan<- transport.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.dropped, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := atomic.SwapUint64(&a.dropped, 0); n > 0 {
				a.log.Warn("inbound updates dropped", logx.Uint64("count", n))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})

	// bot.Start blocks until Stop; run under a restart loop so a poll crash
	// self-heals instead of silencing the bot.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() == nil {
			return errors.New("poller exited")
		}
		return nil
	}, 500*time.Millisecond, 10*time.Second)

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if sup != nil {
		sup.Cancel()
	}
	go a.bot.Stop()

	// Bound shutdown so a hanging long-poll can't stall the process.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if sup != nil {
		if err := sup.Wait(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop error", logx.Err(err))
		}
	}
	return nil
}

// ResolveUser looks up the DM chat for a numeric Telegram user id. A user
// who never started a conversation with the bot resolves but cannot be
// messaged; that surfaces at SendDM time.
func (a *Adapter) ResolveUser(ctx context.Context, id string) (transport.UserRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.UserRef{}, err
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return transport.UserRef{}, errors.New("user id must be numeric")
	}
	chat, err := a.bot.ChatByID(uid)
	if err != nil {
		return transport.UserRef{}, err
	}
	return transport.UserRef{ID: id, ChatID: chat.ID}, nil
}

func (a *Adapter) SendDM(ctx context.Context, to transport.UserRef, text string) (transport.MessageRef, error) {
	return a.send(ctx, &tele.Chat{ID: to.ChatID}, text)
}

// channelRef lets a raw channel id or @username act as a telebot recipient.
type channelRef string

func (c channelRef) Recipient() string { return string(c) }

func (a *Adapter) SendChannel(ctx context.Context, channelID, text string) (transport.MessageRef, error) {
	id := strings.TrimSpace(channelID)
	if id == "" {
		return transport.MessageRef{}, errors.New("channel id is empty")
	}
	return a.send(ctx, channelRef(id), text)
}

const textLimit = 4000

func (a *Adapter) send(ctx context.Context, to tele.Recipient, text string) (transport.MessageRef, error) {
	var first transport.MessageRef
	for i, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			if i > 0 {
				return first, err
			}
			return transport.MessageRef{}, err
		}
		msg, err := a.bot.Send(to, chunk)
		if err != nil {
			if i > 0 {
				return first, err
			}
			return transport.MessageRef{}, err
		}
		if i == 0 {
			first = transport.MessageRef{ID: strconv.Itoa(msg.ID), ChatID: msg.Chat.ID}
		}
	}
	return first, nil
}

// splitText chunks long messages for Telegram's length cap, preferring
// newline boundaries near the end of each window.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		out = append(out, chunk)
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
