package router

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	rtsup "habitbot/internal/runtime/supervisor"
	"habitbot/internal/transport"
	"habitbot/pkg/logx"
)

const (
	defaultWorkers = 2
	handlerTimeout = 15 * time.Second
)

// Request is one inbound command.
type Request struct {
	Command string
	Args    []string
	ChatID  int64
	FromID  int64
	IsGroup bool
	Message *transport.Message
}

type Command struct {
	Name        string
	Description string
	Handler     HandlerFunc
}

// Router dispatches slash commands from an update stream to handlers and
// sends their replies.
type Router struct {
	log    logx.Logger
	sender transport.Sender

	mu   sync.RWMutex
	cmds map[string]Command

	jobs chan func(context.Context)
}

func New(log logx.Logger, sender transport.Sender) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:    log.With(logx.String("comp", "telegram.router")),
		sender: sender,
		cmds:   map[string]Command{},
		jobs:   make(chan func(context.Context), 64),
	}
}

// Register adds or replaces a command. Name is given without the leading slash.
func (r *Router) Register(cmd Command) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))
	if name == "" || cmd.Handler == nil {
		return
	}
	cmd.Name = name
	r.mu.Lock()
	r.cmds[name] = cmd
	r.mu.Unlock()
}

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BotCommands renders the registry for the client command menu.
func (r *Router) BotCommands() []transport.BotCommand {
	cmds := r.Commands()
	out := make([]transport.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Reply sends text back to the chat a request came from.
func (r *Router) Reply(ctx context.Context, req *Request, text string) error {
	if r.sender == nil {
		return errors.New("router has no sender")
	}
	_, err := r.sender.SendText(ctx, transport.ChatTarget{ChatID: req.ChatID}, text, &transport.SendOptions{DisablePreview: true})
	return err
}

// DispatchLoop routes updates until ctx is done or updates is closed.
// Handlers run on a small worker pool so a slow reply never blocks intake.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	for i := 0; i < defaultWorkers; i++ {
		sup.Go0("command.worker", func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					job(c)
				}
			}
		})
	}
	r.log.Info("command dispatcher started", logx.Int("workers", defaultWorkers))
	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(up)
		}
	}
}

func (r *Router) route(up transport.Update) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return
	}
	req, ok := parseCommand(up.Message)
	if !ok {
		return
	}
	r.mu.RLock()
	cmd, found := r.cmds[req.Command]
	r.mu.RUnlock()

	h := cmd.Handler
	if !found {
		h = func(ctx context.Context, req *Request) error {
			return r.Reply(ctx, req, "Unknown command. Try /help")
		}
	}
	h = Chain(h, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(handlerTimeout))

	select {
	case r.jobs <- func(ctx context.Context) { _ = h(ctx, req) }:
	default:
		r.log.Warn("command dropped (workers busy)", logx.String("cmd", req.Command), logx.Int64("chat_id", req.ChatID))
	}
}

// parseCommand extracts "/name@bot arg1 arg2" from a message.
func parseCommand(m *transport.Message) (*Request, bool) {
	fields := strings.Fields(strings.TrimSpace(m.Text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return nil, false
	}
	return &Request{
		Command: strings.ToLower(name),
		Args:    fields[1:],
		ChatID:  m.ChatID,
		FromID:  m.FromID,
		IsGroup: m.IsGroup,
		Message: m,
	}, true
}
