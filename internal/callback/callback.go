// ABOUTME: Inline button payload encoding and parsing
// ABOUTME: Classifies a payload once so the console routes it to exactly one handler

package callback

import "strings"

// Action is the verb carried by a button payload.
type Action string

// Actions understood by the console.
const (
	ActionUnknown    Action = ""
	ActionNewPost    Action = "new_post"
	ActionCancel     Action = "cancel"
	ActionStats      Action = "stats"
	ActionManage     Action = "manage_posts"
	ActionBackToMenu Action = "back_to_menu"
	ActionViewPost   Action = "view_post"
	ActionDeletePost Action = "delete_post"
	ActionLike       Action = "like"
)

// Payload is a parsed button payload.
type Payload struct {
	Action Action
	PostID string
}

// Encode renders the payload in its wire form.
func (p Payload) Encode() string {
	if p.PostID == "" {
		return string(p.Action)
	}
	return string(p.Action) + "_" + p.PostID
}

// NewPost, Cancel and friends build payloads for the fixed menu buttons.
func NewPost() string    { return string(ActionNewPost) }
func Cancel() string     { return string(ActionCancel) }
func Stats() string      { return string(ActionStats) }
func Manage() string     { return string(ActionManage) }
func BackToMenu() string { return string(ActionBackToMenu) }

// ViewPost returns the payload that opens a post.
func ViewPost(postID string) string {
	return Payload{Action: ActionViewPost, PostID: postID}.Encode()
}

// DeletePost returns the payload that deletes a post.
func DeletePost(postID string) string {
	return Payload{Action: ActionDeletePost, PostID: postID}.Encode()
}

// Like returns the payload of a post's like button.
func Like(postID string) string {
	return Payload{Action: ActionLike, PostID: postID}.Encode()
}

// Parse classifies a payload. Unrecognised payloads, and post actions without
// an identifier, parse as ActionUnknown.
func Parse(data string) Payload {
	switch Action(data) {
	case ActionNewPost, ActionCancel, ActionStats, ActionManage, ActionBackToMenu:
		return Payload{Action: Action(data)}
	}

	parts := strings.Split(data, "_")
	switch {
	case strings.HasPrefix(data, string(ActionViewPost)+"_"):
		return withID(ActionViewPost, parts, 2)
	case strings.HasPrefix(data, string(ActionDeletePost)+"_"):
		return withID(ActionDeletePost, parts, 2)
	case strings.HasPrefix(data, string(ActionLike)+"_"):
		return withID(ActionLike, parts, 1)
	}
	return Payload{}
}

func withID(action Action, parts []string, idx int) Payload {
	if len(parts) <= idx || parts[idx] == "" {
		return Payload{}
	}
	return Payload{Action: action, PostID: parts[idx]}
}
