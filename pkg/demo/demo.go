// Package demo is a sample message extension: a package search command,
// link unfurling for pkg.go.dev and a card composer with bot message preview.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"composebot/pkg/activity"
	"composebot/pkg/app"
	"composebot/pkg/msgext"
	"composebot/pkg/turn"
)

// Command ids registered by the extension.
const (
	CommandSearch     = "searchPackages"
	CommandCreateCard = "createCard"
)

const docsURLPrefix = "https://pkg.go.dev/"

// createCardAlias matches command ids such as "card:new" sent by older manifests.
var createCardAlias = regexp.MustCompile(`^card:`)

// State is the per-turn state handed to every handler.
type State struct {
	ChannelID string
	UserID    string
}

// NewState builds the turn state from the inbound activity.
func NewState(tc *turn.Context) State {
	a := tc.Activity()
	state := State{ChannelID: a.ChannelID}
	if a.From != nil {
		state.UserID = a.From.ID
	}

	return state
}

type extension struct {
	catalog *Catalog
	log     *slog.Logger
}

// NewApplication builds an application with the demo extension registered.
func NewApplication(catalog *Catalog, log *slog.Logger) *app.Application[State] {
	if log == nil {
		log = slog.Default()
	}

	return Register(app.New[State](app.WithLogger(log)), catalog, log)
}

// Register adds every demo route to application.
func Register(application *app.Application[State], catalog *Catalog, log *slog.Logger) *app.Application[State] {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if log == nil {
		log = slog.Default()
	}

	e := &extension{catalog: catalog, log: log.With("component", "demo")}
	cardCommands := msgext.AnyOf(msgext.ID(CommandCreateCard), msgext.Pattern(createCardAlias))

	return application.
		MessageExtensions().Query(msgext.ID(CommandSearch), e.search).
		MessageExtensions().SelectItem(e.selectItem).
		MessageExtensions().QueryLink(msgext.MatchFunc(docsLink(activity.InvokeQueryLink)), e.unfurl).
		MessageExtensions().AnonymousQueryLink(msgext.MatchFunc(docsLink(activity.InvokeAnonymousQueryLink)), e.unfurl).
		MessageExtensions().FetchTask(cardCommands, e.openComposer).
		MessageExtensions().SubmitAction(cardCommands, e.previewCard).
		MessageExtensions().BotMessagePreviewEdit(cardCommands, e.editCard).
		MessageExtensions().BotMessagePreviewSend(cardCommands, e.sendCard).
		AddRoute(isMessage, e.help, false)
}

func (e *extension) search(_ context.Context, _ *turn.Context, state State, query msgext.Query) (*msgext.Result, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := query.Decode(&params); err != nil {
		return nil, fmt.Errorf("decode search parameters: %w", err)
	}

	matches := e.catalog.Search(params.Query, query.Skip, query.Count)
	e.log.Debug("Package search", "user_id", state.UserID, "query", params.Query, "matches", len(matches))
	if len(matches) == 0 {
		return &msgext.Result{Type: "message", Text: fmt.Sprintf("No packages match %q", params.Query)}, nil
	}

	attachments := make([]msgext.Attachment, 0, len(matches))
	for _, pkg := range matches {
		attachments = append(attachments, packageAttachment(pkg))
	}

	return listResult(attachments), nil
}

func (e *extension) selectItem(_ context.Context, _ *turn.Context, _ State, item map[string]any) (*msgext.Result, error) {
	path, _ := item["path"].(string)
	pkg, ok := e.catalog.Lookup(path)
	if !ok {
		return &msgext.Result{Type: "message", Text: "That package is no longer listed"}, nil
	}

	return listResult([]msgext.Attachment{packageAttachment(pkg)}), nil
}

func (e *extension) unfurl(_ context.Context, tc *turn.Context, _ State) (*msgext.Result, error) {
	url, _ := tc.Activity().StringField("url")
	pkg, ok := e.catalog.Lookup(strings.TrimPrefix(url, docsURLPrefix))
	if !ok {
		return nil, nil
	}

	return listResult([]msgext.Attachment{packageAttachment(pkg)}), nil
}

func (e *extension) openComposer(_ context.Context, _ *turn.Context, _ State) (msgext.TaskResult, error) {
	return cardForm(cardDraft{}), nil
}

// previewCard shows the composed card as a bot message preview, or reopens
// the form while the title is missing.
func (e *extension) previewCard(_ context.Context, _ *turn.Context, _ State, data json.RawMessage) (msgext.ActionResult, error) {
	var draft cardDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("decode card draft: %w", err)
	}

	if strings.TrimSpace(draft.Title) == "" {
		return cardForm(draft), nil
	}

	preview, err := draftActivity(draft)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(preview)
	if err != nil {
		return nil, fmt.Errorf("encode card preview: %w", err)
	}

	return &msgext.Result{Type: "botMessagePreview", ActivityPreview: raw}, nil
}

func (e *extension) editCard(_ context.Context, _ *turn.Context, _ State, preview activity.Activity) (msgext.ActionResult, error) {
	return cardForm(draftFromActivity(preview)), nil
}

func (e *extension) sendCard(ctx context.Context, tc *turn.Context, state State, preview activity.Activity) error {
	e.log.Info("Posting composed card", "channel_id", state.ChannelID, "user_id", state.UserID)
	return tc.SendActivity(ctx, activity.Activity{
		Type:        activity.TypeMessage,
		Attachments: preview.Attachments,
	})
}

func (e *extension) help(ctx context.Context, tc *turn.Context, _ State) error {
	return tc.SendActivity(ctx, activity.Activity{
		Type: activity.TypeMessage,
		Text: fmt.Sprintf("Search packages with %q or compose a card with %q.", CommandSearch, CommandCreateCard),
	})
}

func draftActivity(draft cardDraft) (activity.Activity, error) {
	attachment, err := json.Marshal(draftAttachment(draft))
	if err != nil {
		return activity.Activity{}, fmt.Errorf("encode card attachment: %w", err)
	}

	return activity.Activity{
		Type:        activity.TypeMessage,
		Attachments: []json.RawMessage{attachment},
	}, nil
}

// draftFromActivity recovers the draft from the first attachment of a
// previewed message. Anything unreadable yields an empty draft.
func draftFromActivity(a activity.Activity) cardDraft {
	if len(a.Attachments) == 0 {
		return cardDraft{}
	}

	var attachment struct {
		Content cardDraft `json:"content"`
	}
	if err := json.Unmarshal(a.Attachments[0], &attachment); err != nil {
		return cardDraft{}
	}

	return attachment.Content
}

// docsLink matches invokeName activities whose value.url points at pkg.go.dev.
func docsLink(invokeName string) turn.Selector {
	return func(_ context.Context, tc *turn.Context) (bool, error) {
		a := tc.Activity()
		if !a.IsInvoke(invokeName) {
			return false, nil
		}

		url, ok := a.StringField("url")
		return ok && strings.HasPrefix(url, docsURLPrefix), nil
	}
}

func isMessage(_ context.Context, tc *turn.Context) (bool, error) {
	return tc.Activity().Type == activity.TypeMessage, nil
}
