// Package console is the bot's single entry point for inbound updates.
//
// It restricts the admin menus to the configured operator, walks the operator
// through post composition, and answers the public like button. Every button
// press is acknowledged exactly once.
package console
