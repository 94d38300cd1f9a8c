// Package session tracks what the operator is expected to send next while
// composing a post.
//
// A session is absent, AwaitingPhoto or AwaitingCaption. Begin starts (or
// restarts) one, OnPhoto advances it, OnText consumes it and Clear drops it.
// Sessions live only in memory.
package session
