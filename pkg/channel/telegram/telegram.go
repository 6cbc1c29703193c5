package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"composebot/pkg/activity"
	"composebot/pkg/channel"
	"composebot/pkg/config"
	"composebot/pkg/msgext"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	channelName           = "telegram"
	messagePreviewLimit   = 240
	typingRefreshInterval = 4 * time.Second

	defaultQueryCommand = "search"
	defaultPageSize     = 25
	queryParameterName  = "query"
)

// Adapter bridges Telegram inline queries into compose extension query
// invokes and plain chat messages into message activities.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if strings.TrimSpace(cfg.QueryCommand) == "" {
		cfg.QueryCommand = defaultQueryCommand
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards updates through the shared channel handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started", "query_command", a.cfg.QueryCommand)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			switch {
			case update.InlineQuery != nil:
				a.handleInlineQuery(ctx, bot, handler, update.InlineQuery)
			case update.Message != nil:
				a.handleMessage(ctx, bot, handler, update.Message)
			}
		}
	}
}

func (a *Adapter) handleInlineQuery(ctx context.Context, bot *telego.Bot, handler channel.Handler, query *telego.InlineQuery) {
	senderID := strconv.FormatInt(query.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring inline query from unauthorized sender", "sender_id", senderID)
		return
	}

	skip := parseOffset(query.Offset)
	inbound, err := queryActivity(query.ID, query.From, a.cfg.QueryCommand, query.Query, skip, a.cfg.PageSize)
	if err != nil {
		a.log.Error("Failed to build query activity", "error", err)
		return
	}
	a.log.Info("Received inline query", "sender_id", senderID, "query", previewText(query.Query), "skip", skip)

	reply, err := handler(ctx, inbound)
	if err != nil {
		a.log.Error("Failed to process inline query", "error", err)
		return
	}

	result, err := composeResult(reply)
	if err != nil {
		a.log.Error("Failed to decode query result", "error", err)
		return
	}

	results := inlineResults(result)
	answer := tu.InlineQuery(query.ID, results...)
	answer.NextOffset = nextOffset(skip, len(results), a.cfg.PageSize)

	if err := bot.AnswerInlineQuery(ctx, answer); err != nil {
		a.log.Error("Failed to answer inline query", "error", err)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, bot *telego.Bot, handler channel.Handler, message *telego.Message) {
	content := strings.TrimSpace(message.Text)
	if content == "" || message.From == nil {
		return
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	inbound := activity.Activity{
		Type:         activity.TypeMessage,
		ID:           strconv.Itoa(message.MessageID),
		ChannelID:    channelName,
		From:         &activity.Account{ID: senderID, Name: message.From.Username},
		Conversation: &activity.Account{ID: chatID},
		Text:         content,
	}
	a.log.Info("Received message", "chat_id", chatID, "sender_id", senderID, "content", previewText(content))

	stopTyping := a.startTypingIndicator(ctx, bot, message.Chat.ID)
	reply, err := handler(ctx, inbound)
	stopTyping()
	if err != nil {
		a.log.Error("Failed to process inbound message", "error", err)
		return
	}

	for _, outbound := range reply.Activities {
		text := strings.TrimSpace(outbound.Text)
		if outbound.Type != activity.TypeMessage || text == "" {
			continue
		}
		a.log.Info("Sending message", "chat_id", chatID, "content", previewText(text))
		if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), text)); err != nil {
			a.log.Error("Failed to send telegram message", "error", err)
		}
	}
}

// queryActivity maps an inline query onto a composeExtension/query invoke.
func queryActivity(queryID string, from telego.User, commandID, text string, skip, count int) (activity.Activity, error) {
	value, err := json.Marshal(map[string]any{
		"commandId": commandID,
		"parameters": []map[string]any{
			{"name": queryParameterName, "value": text},
		},
		"queryOptions": map[string]int{"skip": skip, "count": count},
	})
	if err != nil {
		return activity.Activity{}, err
	}

	return activity.Activity{
		Type:      activity.TypeInvoke,
		Name:      activity.InvokeQuery,
		ID:        queryID,
		ChannelID: channelName,
		From:      &activity.Account{ID: strconv.FormatInt(from.ID, 10), Name: from.Username},
		Value:     value,
	}, nil
}

// composeResult extracts the compose extension result from an invoke reply.
// A reply without one yields nil.
func composeResult(reply channel.Reply) (*msgext.Result, error) {
	if reply.InvokeResponse == nil || reply.InvokeResponse.Body == nil {
		return nil, nil
	}

	raw, err := json.Marshal(reply.InvokeResponse.Body)
	if err != nil {
		return nil, err
	}

	var body struct {
		ComposeExtension *msgext.Result `json:"composeExtension"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	return body.ComposeExtension, nil
}

// inlineResults renders result attachments as article results. A message
// result becomes a single article carrying its text.
func inlineResults(result *msgext.Result) []telego.InlineQueryResult {
	if result == nil {
		return nil
	}

	if len(result.Attachments) == 0 {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			return nil
		}
		return []telego.InlineQueryResult{tu.ResultArticle("0", previewText(text), tu.TextMessage(text))}
	}

	results := make([]telego.InlineQueryResult, 0, len(result.Attachments))
	for i, attachment := range result.Attachments {
		title, body := cardText(attachment)
		if title == "" {
			title = "Result " + strconv.Itoa(i+1)
		}
		if body == "" {
			body = title
		}

		article := tu.ResultArticle(strconv.Itoa(i), title, tu.TextMessage(body))
		if attachment.Preview != nil {
			if _, previewBody := cardText(*attachment.Preview); previewBody != "" {
				article.Description = previewText(previewBody)
			}
		}
		results = append(results, article)
	}

	return results
}

// cardText reads title and text from a hero or thumbnail style card,
// preferring the list preview for the title.
func cardText(attachment msgext.Attachment) (string, string) {
	source := attachment
	if attachment.Preview != nil {
		source = *attachment.Preview
	}

	title := contentString(source.Content, "title")
	if title == "" {
		title = strings.TrimSpace(attachment.Name)
	}

	text := contentString(attachment.Content, "text")
	if text == "" {
		text = contentString(attachment.Content, "title")
	}

	return title, text
}

func contentString(content any, key string) string {
	fields, ok := content.(map[string]any)
	if !ok {
		return ""
	}

	value, _ := fields[key].(string)
	return strings.TrimSpace(value)
}

func parseOffset(offset string) int {
	skip, err := strconv.Atoi(strings.TrimSpace(offset))
	if err != nil || skip < 0 {
		return 0
	}

	return skip
}

// nextOffset requests another page only when this one came back full.
func nextOffset(skip, returned, pageSize int) string {
	if returned == 0 || returned < pageSize {
		return ""
	}

	return strconv.Itoa(skip + returned)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded preview of message text, cut on a rune
// boundary so it stays valid UTF-8 for the Bot API.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	cut := messagePreviewLimit
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}

	return trimmed[:cut] + "..."
}

// startTypingIndicator sends a typing action and refreshes it until the
// returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
