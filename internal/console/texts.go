// ABOUTME: Operator-facing message texts and formatters
// ABOUTME: Dates are rendered day first in the console's location

package console

import (
	"fmt"
	"time"

	"github.com/2389/fanpost/internal/callback"
	"github.com/2389/fanpost/internal/lifecycle"
	"github.com/2389/fanpost/internal/store"
	"github.com/2389/fanpost/internal/transport"
)

const (
	msgMenu         = "🤖 Admin panel"
	msgAskPhoto     = "📸 Send the photo for the new post.\n\n❌ Use the button below to cancel."
	msgAskCaption   = "✅ Photo received!\n\n✍️ Now send the caption.\nSend a blank message to post without one."
	msgNewPostFirst = "❌ Press \"New post\" first."
	msgCancelled    = "❌ Cancelled."
	msgNoPosts      = "📭 No posts yet."
	msgRecentPosts  = "📋 Recent posts (newest first):"
	msgDeleted      = "🗑 Post deleted!"
	noCaption       = "<no text>"

	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006, 15:04:05"
)

var (
	errorNotice  = transport.Notice{Text: "❌ Something went wrong!", Alert: true}
	postNotFound = transport.Notice{Text: "❌ Post not found."}
)

func deliveryFailed(f lifecycle.ChannelFailure) string {
	return fmt.Sprintf("❌ Sending to %s failed: %v", f.Channel, f.Err)
}

func deliverySummary(delivered, total int) string {
	return fmt.Sprintf("✅ Post delivered to %d/%d channels!", delivered, total)
}

func saveWarning(err error) string {
	return fmt.Sprintf("⚠️ Changes could not be saved to disk: %v", err)
}

func anotherPostKeyboard() transport.Keyboard {
	return transport.Keyboard{{{Text: "📸 Another post", Data: callback.NewPost()}}}
}

func statsText(s lifecycle.Stats) string {
	return fmt.Sprintf("📊 Statistics:\n\nPosts: %d\nTotal likes: %d", s.PostCount, s.TotalLikes)
}

func summaryLabel(s lifecycle.Summary, loc *time.Location) string {
	return fmt.Sprintf("%d. ❤️ %d • %s", s.Position, s.Likes, s.CreatedAt.In(loc).Format(dateLayout))
}

func postDetails(p store.Post, loc *time.Location) string {
	caption := noCaption
	if p.Caption != nil {
		caption = *p.Caption
	}
	return fmt.Sprintf("📸 Post details:\n\n📅 Date: %s\n❤️ Likes: %d\n\n%s",
		p.CreatedAt().In(loc).Format(dateTimeLayout), p.Likes, caption)
}
