// Package gateway connects chat platforms to the coordinator. Inbound
// messages become inference tasks; results flow back to the
// originating chat.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/avramakis/hivemind/internal/config"
)

// Coordinator is the orchestrator surface the gateway needs.
type Coordinator interface {
	SubmitInference(prompt, model string) string
	OnInferenceResult(fn func(taskID, text string))
	OnGatewayMessage(fn func(taskID, platform, text string))
}

type Telegram struct {
	bot     *telego.Bot
	handler *th.BotHandler
	orch    Coordinator
	cfg     config.TelegramConfig
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending map[string]int64 // task id -> originating chat id
}

func NewTelegram(cfg config.TelegramConfig, orch Coordinator) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	g := &Telegram{
		bot:     bot,
		orch:    orch,
		cfg:     cfg,
		pending: make(map[string]int64),
	}

	orch.OnInferenceResult(func(taskID, text string) {
		g.deliver(taskID, text)
	})
	orch.OnGatewayMessage(func(taskID, platform, text string) {
		if platform != "telegram" {
			return
		}
		g.deliver(taskID, text)
	})

	return g, nil
}

func (g *Telegram) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	updates, err := g.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(g.bot, updates)
	if err != nil {
		cancel()
		return fmt.Errorf("create handler: %w", err)
	}
	g.handler = handler

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		g.handleMessage(ctx, message)
		return nil
	})

	go handler.Start()

	<-ctx.Done()
	_ = handler.Stop()
	return nil
}

func (g *Telegram) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	if g.handler != nil {
		_ = g.handler.Stop()
	}
}

func (g *Telegram) handleMessage(ctx context.Context, msg telego.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if len(g.cfg.AllowFrom) > 0 {
		allowed := false
		for _, id := range g.cfg.AllowFrom {
			if id == userID {
				allowed = true
				break
			}
		}
		if !allowed {
			slog.Warn("unauthorized telegram user", "user_id", userID, "chat_id", chatID)
			return
		}
	}

	text := msg.Text
	if text == "" {
		if msg.Caption != "" {
			text = msg.Caption
		} else {
			return
		}
	}

	_ = g.sendChatAction(ctx, chatID, "typing")

	taskID := g.orch.SubmitInference(text, "")
	g.mu.Lock()
	g.pending[taskID] = chatID
	g.mu.Unlock()

	slog.Debug("telegram message submitted", "chat", chatID, "task", taskID)
}

// deliver sends a task result back to the chat that caused the task.
// Results for tasks not submitted through this gateway are ignored.
func (g *Telegram) deliver(taskID, text string) {
	g.mu.Lock()
	chatID, ok := g.pending[taskID]
	if ok {
		delete(g.pending, taskID)
	}
	g.mu.Unlock()

	if !ok || text == "" {
		return
	}

	if err := g.SendMessage(context.Background(), chatID, text); err != nil {
		slog.Error("failed to send telegram message", "chat", chatID, "task", taskID, "error", err)
	}
}

func (g *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range chunkMessage(text, 4096) {
		msg := tu.Message(tu.ID(chatID), chunk)
		if _, err := g.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (g *Telegram) sendChatAction(ctx context.Context, chatID int64, action string) error {
	return g.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), action))
}
