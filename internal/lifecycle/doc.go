// Package lifecycle drives a post from creation to deletion.
//
// # Creation
//
// CreatePost allocates the post in the store, then sends the photo to every
// configured channel in parallel. A channel that rejects the photo is logged,
// counted and left out of the post's message ids; it never stops the other
// channels or discards the post. The store is saved once, after the last
// channel finishes, and the Report tells the operator how many channels took
// the post.
//
// # Deletion
//
// DeletePost holds the post's lock, deletes every delivered copy in parallel,
// then drops the post and saves. Channel failures are logged and skipped.
//
// # Reads
//
// ListRecent, ViewPost and Stats never mutate anything.
package lifecycle
