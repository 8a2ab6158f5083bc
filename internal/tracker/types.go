package tracker

import (
	"encoding/json"
	"fmt"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// issueResponse is the response from GET /rest/api/2/issue/{id}. Fields is
// kept raw because the custom field keys are configuration.
type issueResponse struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Self   string                     `json:"self"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// attachment is one element of fields.attachment.
type attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

func (a attachment) toModel() model.Attachment {
	return model.Attachment{
		ID:         a.ID,
		Filename:   a.Filename,
		ContentURL: a.Content,
		Size:       a.Size,
		MimeType:   a.MimeType,
	}
}

// commentRequest is the body of POST /rest/api/2/issue/{id}/comment.
type commentRequest struct {
	Body string `json:"body"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// fieldString decodes a custom field value. Text fields arrive as strings,
// select fields as {"value": ...}, and unset fields as null or not at all.
func fieldString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var opt struct {
		Value *string `json:"value"`
		Name  *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &opt); err == nil {
		switch {
		case opt.Value != nil:
			return *opt.Value, nil
		case opt.Name != nil:
			return *opt.Name, nil
		}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported field value %s", raw)
}
