// Package callback encodes and parses inline button payloads and builds the
// keyboards attached to channel posts.
//
// Payloads are ASCII strings of the form action or action_identifier, with
// "_" as the separator:
//
//	new_post  cancel  stats  manage_posts  back_to_menu
//	view_post_<id>  delete_post_<id>  like_<id>
//
// The format is shared with messages already sitting in channels, so it must
// not change.
package callback
