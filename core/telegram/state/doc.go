// Package state connects Telegram updates to the conversation engine: it
// routes free text of users with a dialogue in progress and tags update
// contexts with the user's phase.
package state
