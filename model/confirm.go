package model

import "fmt"

type ConfirmType string

const (
	ConfirmCmd      ConfirmType = "cmd"
	ConfirmMarkdown ConfirmType = "markdown"
	ConfirmHTML     ConfirmType = "html"
	ConfirmForm     ConfirmType = "form"
	ConfirmInstall  ConfirmType = "install"
	ConfirmCall     ConfirmType = "call"
)

// ConfirmResult is "" while pending, then exactly one of ok or cancel.
type ConfirmResult string

const (
	ConfirmPending ConfirmResult = ""
	ConfirmOK      ConfirmResult = "ok"
	ConfirmCancel  ConfirmResult = "cancel"
)

func (r ConfirmResult) Terminal() bool {
	return r == ConfirmOK || r == ConfirmCancel
}

type Confirmation struct {
	ID         string        `json:"id"`
	Type       ConfirmType   `json:"type"`
	Result     ConfirmResult `json:"result"`
	Content    string        `json:"content"`
	Title      string        `json:"title,omitempty"`
	OkText     string        `json:"okText,omitempty"`
	CancelText string        `json:"cancelText,omitempty"`
}

// Resolve performs the single terminal transition.
func (c *Confirmation) Resolve(result ConfirmResult) error {
	switch {
	case !result.Terminal():
		return fmt.Errorf("confirmation %s: %q is not a terminal result", c.ID, result)
	case c.Result.Terminal():
		return fmt.Errorf("confirmation %s already resolved as %s", c.ID, c.Result)
	}
	c.Result = result
	return nil
}
