// Package domain holds the card lifecycle entities shared by the scheduler,
// the queue builder and the importer: cards, decks, review logs, and the
// validation rules every persisted value must satisfy.
package domain
