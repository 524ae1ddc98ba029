package ankiimport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var importNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func testImporter(t *testing.T) (*Importer, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImporter(Config{TempDir: dir, Now: func() time.Time { return importNow }}, logger), dir
}

func runImport(t *testing.T, f *fixture, media MediaUploader) (*Summary, *memDecks, *memCards, error) {
	t.Helper()
	im, _ := testImporter(t)
	decks := &memDecks{}
	cards := &memCards{}
	summary, err := im.Import(context.Background(), f.archive(t), uuid.New(), decks, media, cards)
	return summary, decks, cards, err
}

func TestImport_DayOffsetDueFromCreationAnchor(t *testing.T) {
	t.Parallel()

	summary, _, cards, err := runImport(t, newFixture().add(reviewCard(1)), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Imported)

	card := cards.cards[0]
	assert.Equal(t, int64(1_700_000_000_000+5*86_400_000), card.DueAt.UnixMilli())
	assert.Equal(t, domain.StateReview, card.State)
	assert.Equal(t, 10, card.IntervalDays)
	assert.InDelta(t, 2.5, card.Ease, 1e-9)
	assert.Equal(t, 4, card.Reps)
	assert.Equal(t, time.UnixMilli(1_600_000_000_001).UTC(), card.CreatedAt)
}

func TestImport_SuspendedAndBuriedCards(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i, ctype := range []int{typeNew, typeLearning, typeReview} {
		c := reviewCard(int64(i + 1))
		c.queue, c.ctype = queueSuspended, ctype
		c.front = "suspended " + string(rune('a'+i))
		f.add(c)
	}
	buried := reviewCard(10)
	buried.queue, buried.ctype, buried.front = queueBuriedSched, typeReview, "buried"
	f.add(buried)

	summary, _, cards, err := runImport(t, f, nil)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Imported)

	for _, front := range []string{"suspended a", "suspended b", "suspended c"} {
		card := cards.byFront(front)
		require.NotNil(t, card, front)
		assert.True(t, card.Suspended, front)
	}

	card := cards.byFront("buried")
	require.NotNil(t, card)
	assert.False(t, card.Suspended)
	assert.Equal(t, domain.StateReview, card.State)
}

func TestImport_InvalidCreationTimestampAborts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		crt  any
	}{
		{name: "negative", crt: int64(-1)},
		{name: "year 3000", crt: int64(32503680000)},
		{name: "far future", crt: int64(99999999999)},
		{name: "null", crt: nil},
		{name: "not numeric", crt: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture().add(reviewCard(1), reviewCard(2))
			f.crt = tt.crt
			f.media = map[string][]byte{"cat.png": pngBytes}
			uploader := newFakeUploader()

			summary, decks, cards, err := runImport(t, f, uploader)
			require.Error(t, err)
			assert.Nil(t, summary)

			var corrupt *CorruptDataError
			require.ErrorAs(t, err, &corrupt)
			assert.ErrorIs(t, err, ErrCorruptData)
			assert.Equal(t, CategoryCorruptedExport, Category(err))

			assert.Empty(t, cards.cards)
			assert.Empty(t, decks.decks)
			assert.Empty(t, uploader.uploaded)
		})
	}
}

func TestImport_FailureThreshold(t *testing.T) {
	t.Parallel()

	build := func(failures int) *fixture {
		f := newFixture()
		for i := 0; i < 100; i++ {
			c := reviewCard(int64(i + 1))
			if i < failures {
				c.back = "   "
			}
			f.add(c)
		}
		// Default-deck cards are excluded from the denominator.
		for i := 0; i < 20; i++ {
			c := reviewCard(int64(1000 + i))
			c.deck = defaultDeckID
			f.add(c)
		}
		return f
	}

	t.Run("twelve failures abort", func(t *testing.T) {
		t.Parallel()

		summary, _, _, err := runImport(t, build(12), nil)
		var thresholdErr *ThresholdExceededError
		require.ErrorAs(t, err, &thresholdErr)
		assert.ErrorIs(t, err, ErrThresholdExceeded)
		assert.Equal(t, 12, thresholdErr.Failed)
		assert.Equal(t, 100, thresholdErr.Processed)
		assert.Equal(t, CategoryTooManyFailures, Category(err))

		// Every card was attempted before aborting.
		require.NotNil(t, summary)
		assert.Equal(t, 88, summary.Imported)
		assert.Equal(t, 12, summary.Failed)
	})

	t.Run("nine failures complete with warning", func(t *testing.T) {
		t.Parallel()

		summary, _, cards, err := runImport(t, build(9), nil)
		require.NoError(t, err)
		assert.Equal(t, 120, summary.TotalCards)
		assert.Equal(t, 91, summary.Imported)
		assert.Equal(t, 9, summary.Failed)
		assert.Len(t, summary.Failures, 9)
		assert.Equal(t, 20, summary.Skipped[SkipDefaultDeck])
		assert.Len(t, cards.cards, 91)
		require.NotEmpty(t, summary.Warnings)
		assert.Contains(t, summary.Warnings[0], "9 cards")
	})
}

func TestImport_DefaultDeckNeverCreated(t *testing.T) {
	t.Parallel()

	c := reviewCard(1)
	c.deck = defaultDeckID
	summary, decks, cards, err := runImport(t, newFixture().add(c, reviewCard(2)), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped[SkipDefaultDeck])
	assert.Equal(t, 1, summary.Imported)
	assert.Len(t, cards.cards, 1)
	assert.Nil(t, decks.byName("Default"))
}

func TestImport_ArchiveWithoutCollection(t *testing.T) {
	t.Parallel()

	f := newFixture().add(reviewCard(1))
	f.entry = "notes.db"

	_, _, _, err := runImport(t, f, nil)
	var invalid *InvalidArchiveError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Entries, "notes.db")
	assert.Contains(t, err.Error(), "notes.db")
	assert.Equal(t, CategoryUnsupportedFormat, Category(err))
}

func TestImport_NotAZip(t *testing.T) {
	t.Parallel()

	im, _ := testImporter(t)
	_, err := im.Import(context.Background(), []byte("definitely not a zip"), uuid.New(), &memDecks{}, nil, &memCards{})
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestImport_NewestCollectionWins(t *testing.T) {
	t.Parallel()

	modern := newFixture().add(reviewCard(1), reviewCard(2))
	modern.entry = collectionAnki21b
	modern.compressed = true

	legacy := newFixture().add(reviewCard(3))
	modern.extra = map[string][]byte{collectionAnki2: legacy.collectionBytes(t)}

	summary, _, _, err := runImport(t, modern, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
}

func TestImport_DeckHierarchy(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.decks = map[int64]string{1: "Default", 2: "Languages::French", 3: "Languages::Spanish", 4: "Filtered"}
	french := reviewCard(1)
	french.deck = 2
	spanish := reviewCard(2)
	spanish.deck = 3
	filtered := reviewCard(3)
	filtered.deck, filtered.odid = 4, 3
	f.add(french, spanish, filtered)

	summary, decks, cards, err := runImport(t, f, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 3, summary.DecksTouched)
	assert.Equal(t, 3, decks.calls)

	root := decks.byName("Languages")
	require.NotNil(t, root)
	assert.Nil(t, root.ParentID)

	frenchDeck := decks.byName("French")
	require.NotNil(t, frenchDeck)
	require.NotNil(t, frenchDeck.ParentID)
	assert.Equal(t, root.ID, *frenchDeck.ParentID)

	spanishDeck := decks.byName("Spanish")
	require.NotNil(t, spanishDeck)
	assert.Nil(t, decks.byName("Filtered"))
	assert.Equal(t, spanishDeck.ID, cards.byFront(filtered.front).DeckID)
}

func TestImport_DeckTableSchema(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.deckTable = true
	f.decks = map[int64]string{1: "Default", 2: "Science\x1fBiology"}
	f.add(reviewCard(1))

	summary, decks, _, err := runImport(t, f, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.NotNil(t, decks.byName("Science"))
	assert.NotNil(t, decks.byName("Biology"))
}

func TestImport_UnparsableDeckJSON(t *testing.T) {
	t.Parallel()

	f := newFixture().add(reviewCard(1))
	f.rawDecks = `{"2": {"id": 2, "name": "Spanish"`

	_, decks, cards, err := runImport(t, f, nil)
	var corrupt *CorruptDataError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "decks", corrupt.Field)
	assert.Empty(t, decks.decks)
	assert.Empty(t, cards.cards)
}

func TestImport_MediaUploadAndRewrite(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.legacyMap = true
	f.media = map[string][]byte{
		"cat.png":    pngBytes,
		"dog.png":    pngBytes,
		"sound.mp3":  []byte("ID3"),
		"broken.gif": []byte("GIF89a"),
	}
	c := reviewCard(1)
	c.front = `What is this? <img src="cat.png"> <img src="missing.png">`
	c.back = `<img src="dog.png"> &amp; &#x263A;`
	f.add(c)

	uploader := newFakeUploader("broken.gif")
	summary, _, cards, err := runImport(t, f, uploader)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.MediaUploaded)
	assert.Equal(t, 1, summary.MediaFailed)
	assert.Equal(t, "image/png", uploader.uploaded["cat.png"])
	assert.NotContains(t, uploader.uploaded, "sound.mp3")

	require.Len(t, cards.cards, 1)
	card := cards.cards[0]
	assert.Contains(t, card.Front, `src="https://cdn.example.com/cat.png"`)
	assert.Contains(t, card.Front, `<img src="missing.png">`)
	assert.Equal(t, `<img src="https://cdn.example.com/dog.png"> & ☺`, card.Back)
	assert.NotEmpty(t, summary.Warnings)
}

func TestImport_TempFilesReleased(t *testing.T) {
	t.Parallel()

	cases := map[string]*fixture{
		"success": newFixture().add(reviewCard(1)),
		"corrupt": func() *fixture {
			f := newFixture().add(reviewCard(1))
			f.crt = int64(-5)
			return f
		}(),
	}

	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			im, dir := testImporter(t)
			_, _ = im.Import(context.Background(), f.archive(t), uuid.New(), &memDecks{}, nil, &memCards{})

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestImport_InsertFailuresAreCounted(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i := 0; i < 20; i++ {
		f.add(reviewCard(int64(i + 1)))
	}

	im, _ := testImporter(t)
	cards := &memCards{fail: func(c *domain.Card) error {
		if c.Front == "hola 3" {
			return errors.New("constraint")
		}
		return nil
	}}
	summary, err := im.Import(context.Background(), f.archive(t), uuid.New(), &memDecks{}, nil, cards)
	require.NoError(t, err)
	assert.Equal(t, 19, summary.Imported)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Reason, "insert")
}

func TestImport_RequiresOwner(t *testing.T) {
	t.Parallel()

	im, _ := testImporter(t)
	_, err := im.Import(context.Background(), nil, uuid.Nil, &memDecks{}, nil, &memCards{})
	assert.True(t, domain.IsValidationError(err))
}

func TestImport_UnreadableRowFailsOnlyThatCard(t *testing.T) {
	t.Parallel()

	const brokenID = 1_600_000_000_007

	testCases := []struct {
		name   string
		stmt   string
		reason string
	}{
		{"fractional due", `UPDATE cards SET due = 5.5 WHERE id = 1600000000007`, "due: not an integer"},
		{"text reps", `UPDATE cards SET reps = 'lots' WHERE id = 1600000000007`, "reps: not numeric"},
		{"null interval", `UPDATE cards SET ivl = NULL WHERE id = 1600000000007`, "ivl: missing"},
		{"missing note", `DELETE FROM notes WHERE id = 1600000000007`, "note is missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			for i := 1; i <= 50; i++ {
				f.add(reviewCard(int64(i)))
			}
			f.after = []string{tc.stmt}

			summary, _, cards, err := runImport(t, f, nil)
			require.NoError(t, err)
			assert.Equal(t, 50, summary.TotalCards)
			assert.Equal(t, 49, summary.Imported)
			assert.Equal(t, 1, summary.Failed)
			require.Len(t, summary.Failures, 1)
			assert.Equal(t, int64(brokenID), summary.Failures[0].ForeignID)
			assert.Contains(t, summary.Failures[0].Reason, "unreadable row: "+tc.reason)
			assert.Len(t, cards.cards, 49)
			assert.Nil(t, cards.byFront("hola 7"))
		})
	}
}

func TestImport_UnstorableValuesFailValidation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i := 1; i <= 25; i++ {
		f.add(reviewCard(int64(i)))
	}
	f.cards[4].ivl = 1 << 40
	f.cards[9].reps = 1 << 31

	summary, _, cards, err := runImport(t, f, nil)
	require.NoError(t, err)
	assert.Equal(t, 23, summary.Imported)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	assert.Contains(t, summary.Failures[0].Reason, "interval_days")
	assert.Contains(t, summary.Failures[1].Reason, "reps")
	assert.Len(t, cards.cards, 23)
}

func TestImport_StartingEase(t *testing.T) {
	t.Parallel()

	newCard := reviewCard(1)
	newCard.queue, newCard.ctype, newCard.ivl, newCard.factor, newCard.reps = queueNew, typeNew, 0, 0, 0
	newCard.front = "new card"
	wildFactor := reviewCard(2)
	wildFactor.factor = 9000
	wildFactor.front = "wild factor"
	keptFactor := reviewCard(3)
	keptFactor.factor = 2100
	keptFactor.front = "kept factor"

	testCases := []struct {
		name     string
		starting float64
		want     map[string]float64
	}{
		{
			name:     "configured starting ease",
			starting: 2.3,
			want:     map[string]float64{"new card": 2.3, "wild factor": 2.3, "kept factor": 2.1},
		},
		{
			name:     "unset falls back to the default",
			starting: 0,
			want:     map[string]float64{"new card": domain.DefaultEase, "wild factor": domain.DefaultEase, "kept factor": 2.1},
		},
		{
			name:     "out of range falls back to the default",
			starting: 7,
			want:     map[string]float64{"new card": domain.DefaultEase, "wild factor": domain.DefaultEase, "kept factor": 2.1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			im := NewImporter(Config{
				TempDir:      t.TempDir(),
				Now:          func() time.Time { return importNow },
				StartingEase: tc.starting,
			}, slog.New(slog.NewTextHandler(io.Discard, nil)))
			f := newFixture().add(newCard, wildFactor, keptFactor)
			cards := &memCards{}

			summary, err := im.Import(context.Background(), f.archive(t), uuid.New(), &memDecks{}, nil, cards)
			require.NoError(t, err)
			require.Equal(t, 3, summary.Imported)
			for front, ease := range tc.want {
				card := cards.byFront(front)
				require.NotNil(t, card, front)
				assert.InDelta(t, ease, card.Ease, 1e-9, front)
			}
		})
	}
}

func TestImport_FilteredDeckCards(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.decks[3] = "Filtered Deck 1"
	f.dynamic = map[int64]bool{3: true}
	for i := 1; i <= 10; i++ {
		f.add(reviewCard(int64(i)))
	}
	homeless := reviewCard(20)
	homeless.deck, homeless.odid, homeless.front = 3, 0, "homeless"
	borrowed := reviewCard(21)
	borrowed.deck, borrowed.odid, borrowed.front = 3, 2, "borrowed"
	f.add(homeless, borrowed)

	summary, decks, cards, err := runImport(t, f, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, summary.Imported)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(1_600_000_000_020), summary.Failures[0].ForeignID)
	assert.Contains(t, summary.Failures[0].Reason, "filtered deck 3")

	assert.Nil(t, decks.byName("Filtered Deck 1"), "filtered decks are never created")
	spanish := decks.byName("Spanish")
	require.NotNil(t, spanish)
	card := cards.byFront("borrowed")
	require.NotNil(t, card)
	assert.Equal(t, spanish.ID, card.DeckID)
	assert.Nil(t, cards.byFront("homeless"))
}

func TestImport_DecodedSizeLimit(t *testing.T) {
	t.Parallel()

	limited := func(t *testing.T, maxBytes int64) *Importer {
		t.Helper()
		return NewImporter(Config{
			TempDir:            t.TempDir(),
			Now:                func() time.Time { return importNow },
			MaxCollectionBytes: maxBytes,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	testCases := []struct {
		name       string
		compressed bool
	}{
		{"deflated collection", false},
		{"zstd collection", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture().add(reviewCard(1))
			if tc.compressed {
				f.entry, f.compressed = collectionAnki21b, true
			}
			cards := &memCards{}

			summary, err := limited(t, 1024).Import(context.Background(), f.archive(t), uuid.New(), &memDecks{}, nil, cards)
			assert.Nil(t, summary)
			require.ErrorIs(t, err, ErrEntryTooLarge)
			var resErr *ResourceError
			assert.ErrorAs(t, err, &resErr)
			assert.Equal(t, CategoryResource, Category(err))
			assert.Empty(t, cards.cards)
		})
	}

	t.Run("oversized media file is skipped", func(t *testing.T) {
		t.Parallel()

		f := newFixture().add(reviewCard(1))
		f.media = map[string][]byte{
			"small.png": pngBytes,
			"huge.png":  append(append([]byte{}, pngBytes...), make([]byte, 256<<10)...),
		}
		uploader := newFakeUploader()

		summary, err := limited(t, 128<<10).Import(context.Background(), f.archive(t), uuid.New(), &memDecks{}, uploader, &memCards{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
		assert.Equal(t, 1, summary.MediaUploaded)
		assert.Equal(t, 1, summary.MediaFailed)
		assert.Contains(t, uploader.uploaded, "small.png")
		assert.NotContains(t, uploader.uploaded, "huge.png")
	})
}
