// Package transport defines the boundary between the bot core and the chat
// platform.
//
// # Messenger
//
// Messenger is the set of outbound calls the core needs: sending text and
// photos, editing a message's inline keyboard, deleting messages, looking up a
// user's membership in a channel, and acknowledging a button press. Every call
// targets a Chat, which is either a public channel handle ("@name") or a
// numeric chat id rendered as a string.
//
// # Events
//
// Inbound updates are normalized into Event values (command, button, photo,
// text) before they reach the console. The Telegram adapter produces them from
// long-polled updates:
//
//	tg, err := transport.NewTelegram(token, transport.TelegramOptions{}, logger)
//	err = tg.Run(ctx, console.Handle)
//
// # Testing
//
// MockMessenger is an in-memory Messenger that records every call and can be
// told to fail per chat:
//
//	m := transport.NewMockMessenger()
//	m.FailSend["@broken"] = errors.New("chat not found")
package transport
