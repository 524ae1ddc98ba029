// Package ankiimport converts Anki collection exports (.apkg and .colpkg
// archives) into validated cards and decks.
//
// The importer reads the newest collection database found in the archive,
// uploads image media, rebuilds the deck hierarchy through a DeckResolver and
// normalizes every card's scheduling state. Individual bad cards and media
// files are counted in the Summary; problems with the archive or its
// collection metadata abort the import with a typed error that Category maps
// to user-facing guidance.
package ankiimport
