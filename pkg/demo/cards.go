package demo

import "composebot/pkg/msgext"

const (
	contentTypeHero      = "application/vnd.microsoft.card.hero"
	contentTypeThumbnail = "application/vnd.microsoft.card.thumbnail"
	contentTypeAdaptive  = "application/vnd.microsoft.card.adaptive"
)

// heroCard is the content of a hero or thumbnail card.
type heroCard struct {
	Title    string              `json:"title,omitempty"`
	Subtitle string              `json:"subtitle,omitempty"`
	Text     string              `json:"text,omitempty"`
	Buttons  []msgext.CardAction `json:"buttons,omitempty"`
	Tap      *msgext.CardAction  `json:"tap,omitempty"`
}

func packageAttachment(pkg Package) msgext.Attachment {
	return msgext.Attachment{
		ContentType: contentTypeHero,
		Content: heroCard{
			Title:    pkg.Name,
			Subtitle: pkg.Path,
			Text:     pkg.Description,
			Buttons: []msgext.CardAction{
				{Type: "openUrl", Title: "Open docs", Value: "https://pkg.go.dev/" + pkg.Path},
			},
		},
		Preview: &msgext.Attachment{
			ContentType: contentTypeThumbnail,
			Content: heroCard{
				Title: pkg.Name,
				Text:  pkg.Description,
				Tap:   &msgext.CardAction{Type: "invoke", Value: map[string]string{"path": pkg.Path}},
			},
		},
	}
}

func listResult(attachments []msgext.Attachment) *msgext.Result {
	return &msgext.Result{
		Type:             "result",
		AttachmentLayout: "list",
		Attachments:      attachments,
	}
}

// cardForm is the task module used to compose a card, prefilled with draft.
func cardForm(draft cardDraft) *msgext.TaskInfo {
	return &msgext.TaskInfo{
		Title:  "Create card",
		Height: "medium",
		Width:  "medium",
		Card: &msgext.Attachment{
			ContentType: contentTypeAdaptive,
			Content: map[string]any{
				"type":    "AdaptiveCard",
				"version": "1.4",
				"body": []map[string]any{
					{"type": "Input.Text", "id": "title", "label": "Title", "value": draft.Title},
					{"type": "Input.Text", "id": "subtitle", "label": "Subtitle", "value": draft.Subtitle},
					{"type": "Input.Text", "id": "text", "label": "Text", "value": draft.Text, "isMultiline": true},
				},
				"actions": []map[string]any{
					{"type": "Action.Submit", "title": "Preview"},
				},
			},
		},
	}
}

// cardDraft is the data submitted from cardForm.
type cardDraft struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Text     string `json:"text"`
}

func draftAttachment(draft cardDraft) msgext.Attachment {
	return msgext.Attachment{
		ContentType: contentTypeHero,
		Content: heroCard{
			Title:    draft.Title,
			Subtitle: draft.Subtitle,
			Text:     draft.Text,
		},
	}
}
