package training

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/identifier"
)

// Default column names of an exported corpus.
const (
	IDColumn         = "ID"
	IdentifierColumn = "IDENTIFIER"
	WordColumn       = "WORD"
	LabelColumn      = "CORRECT_TAG"
)

// LabeledIdentifier is one hand-tagged identifier of a corpus.
type LabeledIdentifier struct {
	Name    string
	Context identifier.Context
	// Words overrides the splitter when the corpus carries its own split.
	Words  []string
	Labels []string
}

// BuildRows runs the extractor over a labeled corpus and returns one row per
// word with every feature column. Rows are ready for WriteSQLite and use
// exactly the vectors the tagger computes at serving time.
func BuildRows(ex *features.Extractor, splitter identifier.Splitter, items []LabeledIdentifier) (*Table, error) {
	names := features.Names()
	t := &Table{Columns: append([]string{IDColumn, IdentifierColumn, WordColumn}, append(names, LabelColumn)...)}
	for n, item := range items {
		var id identifier.Identifier
		if item.Words != nil {
			id = identifier.FromWords(item.Name, item.Context, item.Words)
		} else {
			id = identifier.New(item.Name, item.Context, splitter)
		}
		if id.Len() != len(item.Labels) {
			return nil, fmt.Errorf("training: %s: %d words but %d labels", item.Name, id.Len(), len(item.Labels))
		}
		vecs, err := ex.ExtractAll(id)
		if err != nil {
			return nil, fmt.Errorf("training: %s: %w", item.Name, err)
		}
		for i, vec := range vecs {
			row := []string{fmt.Sprintf("%d_%d", n, i), item.Name, id.Words[i].Text}
			row = append(row, vec.Row(names)...)
			row = append(row, item.Labels[i])
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// WriteSQLite stores t into table in the SQLite database at path, replacing
// any existing table of that name. Categorical feature columns and unknown
// columns are TEXT; the remaining feature columns are REAL.
func WriteSQLite(ctx context.Context, path, table string, t *Table) (err error) {
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return fmt.Errorf("training: open %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("training: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	known := make(map[string]bool)
	for _, n := range features.Names() {
		known[n] = true
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		if known[c] && !features.IsCategorical(c) {
			typ = "REAL"
		}
		defs[i] = quoteIdent(c) + " " + typ
	}
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("training: drop %s: %w", table, err)
	}
	if _, err = tx.ExecContext(ctx, "CREATE TABLE "+quoteIdent(table)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("training: create %s: %w", table, err)
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(table)+" VALUES ("+marks+")")
	if err != nil {
		return fmt.Errorf("training: prepare insert: %w", err)
	}
	defer stmt.Close()
	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			args[i] = v
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("training: insert: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("training: commit: %w", err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
