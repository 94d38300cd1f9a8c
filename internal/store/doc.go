// Package store owns the bot's posts and their like sets.
//
// # Ownership
//
// Store is the only holder of mutable Post state. Callers receive deep copies
// from Get and Recent and change posts only through the mutation entry
// points:
//
//   - Create: allocate an id and add an empty post
//   - RecordDelivery / RemoveChannel: maintain the channel -> message id map
//   - RecordLike: add a liker and bump the counter together
//   - Delete: drop the post
//
// Likes always equal the size of the liked-users set.
//
// # Post ids
//
// Ids are the creation time in Unix milliseconds, as a decimal string. When
// two posts would share a millisecond the later one gets last+1, so ids stay
// unique and strictly increasing and sort newest-last.
//
// # Locking
//
// LockPost hands out a mutex per post id. The engagement gate holds it across
// its check-then-write sequence and the lifecycle controller holds it while
// deleting, so operations on the same post are serialized while different
// posts proceed in parallel. A mutex lives only while it is held or awaited,
// so lookups of ids that never existed leave nothing behind.
//
// # Persistence
//
// Save writes a full snapshot through a Snapshotter. Two backends exist:
//
//   - JSONFile: the posts.json layout, replaced atomically via rename
//   - SQLite: posts, post_likes and post_messages tables (modernc.org/sqlite
//     through sqlx), replaced inside one transaction
//
// Saves are serialized and each one snapshots the state it writes, so a
// slower save never overwrites a newer one. A snapshot that fails to load
// leaves the store empty and logs a warning.
package store
