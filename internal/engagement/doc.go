// Package engagement implements the like button.
//
// A like is accepted only from users subscribed to every configured channel.
// Gate.Like runs its lookup, subscription check, duplicate check and write
// while holding the post's store lock, so a user tapping twice, or many users
// tapping at once, never double-counts. Accepted likes are then pushed to every
// channel copy of the post by editing its keyboard.
//
// Outcomes:
//
//   - Accepted: the like was recorded
//   - AlreadyLiked: the user liked this post before
//   - NotSubscribed: some channel reports the user as not a member
//   - SubscriptionCheckFailed: a membership lookup errored
//   - PostNotFound: the post no longer exists
package engagement
