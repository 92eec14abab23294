package notify

// ActionCancelAll is the action key carried by session summaries.
const ActionCancelAll = "cancel_all"

type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Content is everything a host needs to draw one notification.
type Content struct {
	Title string `json:"title"`
	Text  string `json:"text"`

	// Percent is 0-100 and ignored when Indeterminate is set.
	Percent       int  `json:"percent"`
	Indeterminate bool `json:"indeterminate,omitempty"`
	ShowProgress  bool `json:"show_progress,omitempty"`

	Ongoing bool     `json:"ongoing,omitempty"`
	Failed  bool     `json:"failed,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Notifier is the notification host. Ids are chosen by the caller and stable for the
// life of a notification; group keys tie member notifications to their summary.
type Notifier interface {
	Post(id int, group string, c Content)
	Update(id int, c Content)
	Cancel(id int)
	CancelGroup(group string)
}
