// ABOUTME: Keyboard builders for channel posts and the admin console
// ABOUTME: The like keyboard is shared by delivery and by the like-count refresh

package callback

import (
	"fmt"

	"github.com/2389/fanpost/internal/transport"
)

// LikeKeyboard is the keyboard attached to every channel copy of a post.
// subscribeURL may be empty, in which case the subscribe button is omitted.
func LikeKeyboard(postID string, likes int, subscribeURL string) transport.Keyboard {
	row := []transport.Button{
		{Text: fmt.Sprintf("❤️ Like (%d)", likes), Data: Like(postID)},
	}
	if subscribeURL != "" {
		row = append(row, transport.Button{Text: "🔔 Subscribe", URL: subscribeURL})
	}
	return transport.Keyboard{row}
}

// MainMenu is the operator's top-level menu.
func MainMenu() transport.Keyboard {
	return transport.Keyboard{
		{{Text: "📸 New post", Data: NewPost()}},
		{{Text: "📋 Manage posts", Data: Manage()}},
		{{Text: "📊 Statistics", Data: Stats()}},
	}
}

// CancelKeyboard offers a single cancel button during post creation.
func CancelKeyboard() transport.Keyboard {
	return transport.Keyboard{{{Text: "❌ Cancel", Data: Cancel()}}}
}

// BackTo offers a single back button leading to payload.
func BackTo(payload string) transport.Keyboard {
	return transport.Keyboard{{{Text: "◀️ Back", Data: payload}}}
}
