package ankiimport

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// defaultDeckID is the reserved deck every Anki collection carries.
const defaultDeckID int64 = 1

const (
	fieldSeparator       = "\x1f"
	legacyDeckSeparator  = "\x1f"
	noteFieldFront       = 0
	noteFieldBack        = 1
	maxCreationTimestamp = 32503680000 // 3000-01-01T00:00:00Z
)

// foreignDeck is a deck row from the collection.
type foreignDeck struct {
	ID      int64
	Name    string
	Dynamic bool
}

// foreignCard is a card row joined with its note's fields.
type foreignCard struct {
	ID             int64
	DeckID         int64
	OriginalDeckID int64
	Queue          int
	Type           int
	Interval       int64
	Factor         int64
	Due            int64
	Reps           int
	Lapses         int
	Fields         []string
	// Problem is set when the row could not be read; the card then fails
	// on its own without stopping the import.
	Problem string
}

// homeDeck is the deck the card belongs to. Cards pulled into a filtered deck
// remember their original deck in odid.
func (c foreignCard) homeDeck() int64 {
	if c.OriginalDeckID != 0 {
		return c.OriginalDeckID
	}
	return c.DeckID
}

func (c foreignCard) field(i int) string {
	if i < len(c.Fields) {
		return c.Fields[i]
	}
	return ""
}

// collection is an opened collection database backed by a temporary file.
type collection struct {
	db   *sql.DB
	path string
}

// openCollection writes data to a temporary file and opens it. Close must be
// called on every path; it removes the file.
func openCollection(ctx context.Context, data []byte, tempDir string) (*collection, error) {
	f, err := os.CreateTemp(tempDir, "anki-collection-*.sqlite")
	if err != nil {
		return nil, &ResourceError{Op: "create temp collection", Err: err}
	}
	c := &collection{path: f.Name()}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = c.Close()
		return nil, &ResourceError{Op: "write temp collection", Err: err}
	}
	if err := f.Close(); err != nil {
		_ = c.Close()
		return nil, &ResourceError{Op: "close temp collection", Err: err}
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		_ = c.Close()
		return nil, &ResourceError{Op: "open collection", Err: err}
	}
	db.SetMaxOpenConns(1)
	c.db = db

	if err := db.PingContext(ctx); err != nil {
		_ = c.Close()
		return nil, &CorruptDataError{Field: "database", Reason: "not a readable sqlite database", Err: err}
	}
	return c, nil
}

// Close releases the handle and deletes the temporary file.
func (c *collection) Close() error {
	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	if c.path != "" {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		c.path = ""
	}
	return errors.Join(errs...)
}

// creationTime reads and validates col.crt, the anchor for day-offset due dates.
func (c *collection) creationTime(ctx context.Context) (time.Time, error) {
	var raw any
	if err := c.db.QueryRowContext(ctx, `SELECT crt FROM col LIMIT 1`).Scan(&raw); err != nil {
		return time.Time{}, &CorruptDataError{Field: "creation timestamp", Reason: "unreadable", Err: err}
	}

	secs, err := parseCreation(raw)
	if err != nil {
		return time.Time{}, &CorruptDataError{Field: "creation timestamp", Reason: err.Error()}
	}
	return time.Unix(secs, 0).UTC(), nil
}

func parseCreation(raw any) (int64, error) {
	var secs int64
	switch v := raw.(type) {
	case nil:
		return 0, errors.New("missing")
	case int64:
		secs = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		secs = int64(v)
	case []byte:
		return parseCreation(string(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", v)
		}
		secs = n
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}

	if secs < 0 {
		return 0, fmt.Errorf("negative: %d", secs)
	}
	if secs >= maxCreationTimestamp {
		return 0, fmt.Errorf("implausibly far in the future: %d", secs)
	}
	return secs, nil
}

// decks reads the deck tree from the col.decks JSON blob, or from the decks
// table that replaced it in later schema versions.
func (c *collection) decks(ctx context.Context) (map[int64]foreignDeck, error) {
	var blob sql.NullString
	if err := c.db.QueryRowContext(ctx, `SELECT decks FROM col LIMIT 1`).Scan(&blob); err != nil {
		return nil, &CorruptDataError{Field: "decks", Reason: "unreadable", Err: err}
	}

	text := strings.TrimSpace(blob.String)
	if text != "" && text != "{}" {
		return parseDeckJSON(text)
	}
	return c.deckTable(ctx)
}

func parseDeckJSON(text string) (map[int64]foreignDeck, error) {
	var raw map[string]struct {
		ID   json.Number     `json:"id"`
		Name string          `json:"name"`
		Dyn  json.RawMessage `json:"dyn"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &CorruptDataError{Field: "decks", Reason: "invalid JSON", Err: err}
	}

	out := make(map[int64]foreignDeck, len(raw))
	for key, d := range raw {
		idText := d.ID.String()
		if idText == "" {
			idText = key
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, &CorruptDataError{Field: "decks", Reason: fmt.Sprintf("invalid deck id %q", idText), Err: err}
		}
		out[id] = foreignDeck{ID: id, Name: d.Name, Dynamic: isTruthy(d.Dyn)}
	}
	return out, nil
}

func isTruthy(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v == "1" || v == "true"
}

func (c *collection) deckTable(ctx context.Context) (map[int64]foreignDeck, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name FROM decks`)
	if err != nil {
		return nil, &CorruptDataError{Field: "decks", Reason: "no deck description found", Err: err}
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]foreignDeck)
	for rows.Next() {
		var d foreignDeck
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, &CorruptDataError{Field: "decks", Reason: "unreadable deck row", Err: err}
		}
		d.Name = strings.ReplaceAll(d.Name, legacyDeckSeparator, "::")
		out[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, &CorruptDataError{Field: "decks", Reason: "unreadable deck rows", Err: err}
	}
	return out, nil
}

// cards loads every card together with its note fields, in card id order.
// Numeric columns are read loosely: a value that is not an integer, or a
// card whose note is missing, marks that card with a Problem instead of
// failing the query.
func (c *collection) cards(ctx context.Context) ([]foreignCard, error) {
	query := `
		SELECT c.id, c.did, c.odid, c.queue, c.type, c.ivl, c.factor, c.due, c.reps, c.lapses, n.flds
		FROM cards c
		LEFT JOIN notes n ON n.id = c.nid
		ORDER BY c.id
	`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &CorruptDataError{Field: "cards", Reason: "unreadable", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []foreignCard
	for rows.Next() {
		var (
			cols   [10]any
			fields sql.NullString
		)
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4],
			&cols[5], &cols[6], &cols[7], &cols[8], &cols[9], &fields); err != nil {
			return nil, &CorruptDataError{Field: "cards", Reason: "unreadable card row", Err: err}
		}
		out = append(out, cardFromRow(cols, fields))
	}
	if err := rows.Err(); err != nil {
		return nil, &CorruptDataError{Field: "cards", Reason: "unreadable card rows", Err: err}
	}
	return out, nil
}

func cardFromRow(cols [10]any, fields sql.NullString) foreignCard {
	var (
		fc       foreignCard
		problems []string
	)
	readInt := func(name string, v any) int64 {
		n, err := intColumn(v)
		if err != nil {
			problems = append(problems, name+": "+err.Error())
		}
		return n
	}

	fc.ID = readInt("id", cols[0])
	fc.DeckID = readInt("did", cols[1])
	if cols[2] != nil {
		fc.OriginalDeckID = readInt("odid", cols[2])
	}
	fc.Queue = int(readInt("queue", cols[3]))
	fc.Type = int(readInt("type", cols[4]))
	fc.Interval = readInt("ivl", cols[5])
	fc.Factor = readInt("factor", cols[6])
	fc.Due = readInt("due", cols[7])
	fc.Reps = int(readInt("reps", cols[8]))
	fc.Lapses = int(readInt("lapses", cols[9]))

	if fields.Valid {
		fc.Fields = strings.Split(fields.String, fieldSeparator)
	} else {
		problems = append(problems, "note is missing")
	}
	fc.Problem = strings.Join(problems, "; ")
	return fc
}

// intColumn converts a loosely typed sqlite value to an integer.
func intColumn(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errors.New("missing")
	case int64:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) ||
			x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int64(x), nil
	case []byte:
		return intColumn(string(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
