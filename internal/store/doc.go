// Package store defines the persistence interfaces for cards, decks and
// review logs, the errors every implementation returns, and the shared
// transaction helper.
package store
