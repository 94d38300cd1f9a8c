// Package dedupe remembers recently handled update ids so that updates the
// Bot API redelivers after a reconnect are processed only once.
package dedupe
