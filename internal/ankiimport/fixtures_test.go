package ankiimport

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/stretchr/testify/require"
)

// testCrt is the collection creation anchor used by most fixtures.
const testCrt int64 = 1_700_000_000

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type fixtureCard struct {
	id     int64
	deck   int64
	odid   int64
	queue  int
	ctype  int
	ivl    int64
	factor int64
	due    int64
	reps   int
	lapses int
	front  string
	back   string
}

type fixture struct {
	crt        any
	decks      map[int64]string
	dynamic    map[int64]bool
	rawDecks   string
	deckTable  bool
	cards      []fixtureCard
	media      map[string][]byte
	legacyMap  bool
	entry      string
	compressed bool
	extra      map[string][]byte
	// after runs against the collection once every card is inserted.
	after []string
}

func newFixture() *fixture {
	return &fixture{
		crt:   testCrt,
		decks: map[int64]string{1: "Default", 2: "Spanish"},
	}
}

// reviewCard returns a valid review card in deck 2.
func reviewCard(id int64) fixtureCard {
	return fixtureCard{
		id: 1_600_000_000_000 + id, deck: 2, queue: 2, ctype: 2,
		ivl: 10, factor: 2500, due: 5, reps: 4,
		front: "hola " + strconv.FormatInt(id, 10), back: "hello",
	}
}

func (f *fixture) add(cards ...fixtureCard) *fixture {
	f.cards = append(f.cards, cards...)
	return f
}

// collectionBytes builds a minimal collection database.
func (f *fixture) collectionBytes(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.anki2")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE col (id INTEGER PRIMARY KEY, crt, decks TEXT)`,
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, flds TEXT NOT NULL)`,
		`CREATE TABLE cards (id INTEGER PRIMARY KEY, nid INTEGER, did INTEGER, odid INTEGER,
			queue INTEGER, type INTEGER, ivl INTEGER, factor INTEGER, due INTEGER,
			reps INTEGER, lapses INTEGER)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	decksJSON := "{}"
	if f.deckTable {
		_, err := db.Exec(`CREATE TABLE decks (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
		require.NoError(t, err)
		for id, name := range f.decks {
			_, err := db.Exec(`INSERT INTO decks (id, name) VALUES (?, ?)`, id, name)
			require.NoError(t, err)
		}
	} else {
		raw := make(map[string]map[string]any, len(f.decks))
		for id, name := range f.decks {
			dyn := 0
			if f.dynamic[id] {
				dyn = 1
			}
			raw[strconv.FormatInt(id, 10)] = map[string]any{"id": id, "name": name, "dyn": dyn}
		}
		encoded, err := json.Marshal(raw)
		require.NoError(t, err)
		decksJSON = string(encoded)
	}

	if f.rawDecks != "" {
		decksJSON = f.rawDecks
	}
	_, err = db.Exec(`INSERT INTO col (id, crt, decks) VALUES (1, ?, ?)`, f.crt, decksJSON)
	require.NoError(t, err)

	for _, c := range f.cards {
		_, err := db.Exec(`INSERT INTO notes (id, flds) VALUES (?, ?)`, c.id, c.front+fieldSeparator+c.back)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO cards (id, nid, did, odid, queue, type, ivl, factor, due, reps, lapses)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.id, c.deck, c.odid, c.queue, c.ctype, c.ivl, c.factor, c.due, c.reps, c.lapses)
		require.NoError(t, err)
	}
	for _, stmt := range f.after {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// archive zips the collection with its media.
func (f *fixture) archive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}

	entry := f.entry
	if entry == "" {
		entry = collectionAnki2
	}
	data := f.collectionBytes(t)
	if f.compressed {
		data = compress(t, data)
	}
	write(entry, data)

	mediaMap := make(map[string]string)
	i := 0
	for name, content := range f.media {
		if f.legacyMap {
			key := strconv.Itoa(i)
			mediaMap[key] = name
			write(key, content)
			i++
			continue
		}
		write(name, content)
	}
	if f.legacyMap {
		encoded, err := json.Marshal(mediaMap)
		require.NoError(t, err)
		write(mediaMapEntry, encoded)
	}
	for name, content := range f.extra {
		write(name, content)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

// memDecks is an in-memory DeckResolver.
type memDecks struct {
	mu    sync.Mutex
	decks []*domain.Deck
	calls int
}

func (m *memDecks) FindOrCreate(_ context.Context, userID uuid.UUID, name string, parentID *uuid.UUID) (*domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	for _, d := range m.decks {
		if d.UserID == userID && d.Name == name && samePtr(d.ParentID, parentID) {
			return d, nil
		}
	}
	deck, err := domain.NewDeck(userID, name, parentID)
	if err != nil {
		return nil, err
	}
	m.decks = append(m.decks, deck)
	return deck, nil
}

func (m *memDecks) byName(name string) *domain.Deck {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.decks {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func samePtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// memCards is an in-memory CardInserter.
type memCards struct {
	mu    sync.Mutex
	cards []*domain.Card
	fail  func(*domain.Card) error
}

func (m *memCards) Create(_ context.Context, card *domain.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(card); err != nil {
			return err
		}
	}
	m.cards = append(m.cards, card)
	return nil
}

func (m *memCards) byFront(front string) *domain.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.Front == front {
			return c
		}
	}
	return nil
}

// fakeUploader records uploads and fails for the listed filenames.
type fakeUploader struct {
	mu       sync.Mutex
	uploaded map[string]string
	failFor  map[string]bool
}

func newFakeUploader(failFor ...string) *fakeUploader {
	u := &fakeUploader{uploaded: make(map[string]string), failFor: make(map[string]bool)}
	for _, name := range failFor {
		u.failFor[name] = true
	}
	return u
}

func (u *fakeUploader) Upload(_ context.Context, path string, _ []byte, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	base := filepath.Base(path)
	if u.failFor[base] {
		return "", errors.New("bucket unavailable")
	}
	u.uploaded[base] = contentType
	return "https://cdn.example.com/" + base, nil
}
