package activity

import (
	"bytes"
	"encoding/json"
)

// Activity types carried in Activity.Type.
const (
	TypeMessage        = "message"
	TypeInvoke         = "invoke"
	TypeInvokeResponse = "invokeResponse"
)

// Invoke names (Activity.Name) for the compose extension family.
const (
	InvokeAnonymousQueryLink = "composeExtension/anonymousQueryLink"
	InvokeFetchTask          = "composeExtension/fetchTask"
	InvokeQuery              = "composeExtension/query"
	InvokeQueryLink          = "composeExtension/queryLink"
	InvokeSelectItem         = "composeExtension/selectItem"
	InvokeSubmitAction       = "composeExtension/submitAction"
)

// Account identifies a user, bot, or conversation on the host platform.
type Account struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Activity is one inbound or outbound protocol message.
//
// Value is kept raw; its shape depends on Type and Name and is decoded by
// the component that owns that invoke.
type Activity struct {
	Type         string            `json:"type"`
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	ChannelID    string            `json:"channelId,omitempty"`
	ServiceURL   string            `json:"serviceUrl,omitempty"`
	From         *Account          `json:"from,omitempty"`
	Recipient    *Account          `json:"recipient,omitempty"`
	Conversation *Account          `json:"conversation,omitempty"`
	Text         string            `json:"text,omitempty"`
	Attachments  []json.RawMessage `json:"attachments,omitempty"`
	Value        json.RawMessage   `json:"value,omitempty"`
}

// InvokeResponse is the synchronous reply to an invoke activity.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// IsInvoke reports whether the activity is an invoke named name.
func (a Activity) IsInvoke(name string) bool {
	return a.Type == TypeInvoke && a.Name == name
}

// Field returns the raw member name of Value when Value is a JSON object.
func (a Activity) Field(name string) (json.RawMessage, bool) {
	fields, ok := a.fields()
	if !ok {
		return nil, false
	}

	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, false
	}

	return raw, true
}

// StringField returns member name of Value only when it holds a JSON string.
func (a Activity) StringField(name string) (string, bool) {
	raw, ok := a.Field(name)
	if !ok {
		return "", false
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}

	return value, true
}

// DecodeValue unmarshals Value into dst. A missing Value leaves dst untouched.
func (a Activity) DecodeValue(dst any) error {
	if isNull(a.Value) {
		return nil
	}

	return json.Unmarshal(a.Value, dst)
}

func (a Activity) fields() (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(a.Value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}

	return fields, true
}

// NewInvokeResponse wraps resp as an outbound invokeResponse activity.
func NewInvokeResponse(resp InvokeResponse) (Activity, error) {
	value, err := json.Marshal(resp)
	if err != nil {
		return Activity{}, err
	}

	return Activity{Type: TypeInvokeResponse, Value: value}, nil
}

// InvokeResponseOf decodes the InvokeResponse carried by an invokeResponse activity.
func InvokeResponseOf(a Activity) (InvokeResponse, bool) {
	if a.Type != TypeInvokeResponse {
		return InvokeResponse{}, false
	}

	var resp struct {
		Status int             `json:"status"`
		Body   json.RawMessage `json:"body,omitempty"`
	}
	if err := a.DecodeValue(&resp); err != nil {
		return InvokeResponse{}, false
	}

	out := InvokeResponse{Status: resp.Status}
	if len(resp.Body) > 0 {
		out.Body = resp.Body
	}

	return out, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
