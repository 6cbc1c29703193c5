package msgext

import "encoding/json"

// Task envelope types.
const (
	TaskMessage  = "message"
	TaskContinue = "continue"
)

// Result is a compose extension result: a list of result cards or a
// rendered card to show to the user.
type Result struct {
	AttachmentLayout string            `json:"attachmentLayout,omitempty"`
	Type             string            `json:"type,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
	SuggestedActions *SuggestedActions `json:"suggestedActions,omitempty"`
	Text             string            `json:"text,omitempty"`
	ActivityPreview  json.RawMessage   `json:"activityPreview,omitempty"`
}

// Attachment is a card attachment with an optional list preview.
type Attachment struct {
	ContentType  string      `json:"contentType"`
	ContentURL   string      `json:"contentUrl,omitempty"`
	Content      any         `json:"content,omitempty"`
	Name         string      `json:"name,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	Preview      *Attachment `json:"preview,omitempty"`
}

// SuggestedActions lists follow-up actions offered with a result.
type SuggestedActions struct {
	Actions []CardAction `json:"actions,omitempty"`
}

// CardAction is one clickable action.
type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Value any    `json:"value,omitempty"`
}

// TaskInfo describes a task module (modal dialog) to continue with.
type TaskInfo struct {
	Title           string      `json:"title,omitempty"`
	Height          any         `json:"height,omitempty"`
	Width           any         `json:"width,omitempty"`
	URL             string      `json:"url,omitempty"`
	Card            *Attachment `json:"card,omitempty"`
	FallbackURL     string      `json:"fallbackUrl,omitempty"`
	CompletionBotID string      `json:"completionBotId,omitempty"`
}

// Message is a terminal text message shown in place of a task module.
type Message string

// RawResult is an untyped handler result. It is classified by the presence
// of a truthy "card" member: with one it continues a task module, without
// one it is a compose extension result.
type RawResult map[string]any

// TaskResult is returned by fetchTask handlers: Message, *TaskInfo or RawResult.
type TaskResult interface {
	taskResult()
}

// ActionResult is returned by submitAction and preview edit handlers:
// Message, *TaskInfo, *Result, RawResult, or nil for no action.
type ActionResult interface {
	actionResult()
}

func (Message) taskResult()     {}
func (*TaskInfo) taskResult()   {}
func (RawResult) taskResult()   {}
func (Message) actionResult()   {}
func (*TaskInfo) actionResult() {}
func (*Result) actionResult()   {}
func (RawResult) actionResult() {}

// ActionResponse is the invoke response body for every compose extension invoke.
type ActionResponse struct {
	ComposeExtension any           `json:"composeExtension,omitempty"`
	Task             *TaskEnvelope `json:"task,omitempty"`
}

// TaskEnvelope is either {type: message, value: string} or
// {type: continue, value: task info}. A continue without a task omits value.
type TaskEnvelope struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

func composeResponse(result *Result) ActionResponse {
	if result == nil {
		return ActionResponse{}
	}
	return ActionResponse{ComposeExtension: result}
}

func messageResponse(text string) ActionResponse {
	return ActionResponse{Task: &TaskEnvelope{Type: TaskMessage, Value: text}}
}

func continueResponse(task any) ActionResponse {
	return ActionResponse{Task: &TaskEnvelope{Type: TaskContinue, Value: task}}
}

// fetchTaskResponse: a message stays a message, anything else continues.
func fetchTaskResponse(result TaskResult) ActionResponse {
	switch r := result.(type) {
	case Message:
		return messageResponse(string(r))
	case *TaskInfo:
		if r == nil {
			return continueResponse(nil)
		}
		return continueResponse(r)
	case RawResult:
		return continueResponse(map[string]any(r))
	default:
		return continueResponse(nil)
	}
}

// actionResponse shapes submitAction and preview edit results.
func actionResponse(result ActionResult) ActionResponse {
	switch r := result.(type) {
	case Message:
		return messageResponse(string(r))
	case *TaskInfo:
		if r == nil {
			return ActionResponse{}
		}
		return continueResponse(r)
	case *Result:
		return composeResponse(r)
	case RawResult:
		if r == nil {
			return ActionResponse{}
		}
		if truthy(r["card"]) {
			return continueResponse(map[string]any(r))
		}
		return ActionResponse{ComposeExtension: map[string]any(r)}
	default:
		return ActionResponse{}
	}
}

func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case float64:
		return value != 0
	case int:
		return value != 0
	default:
		return true
	}
}
