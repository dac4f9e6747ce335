package library

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/coolbeans/reqlib/pkg/synth"
)

// Tag kinds stored in the requirement_tags table.
const (
	TagTopic              = "topic"
	TagPrimaryEvidence    = "primary_evidence"
	TagSupportingEvidence = "supporting_evidence"
	TagKeywordPrimary     = "keyword_primary"
	TagKeywordSecondary   = "keyword_secondary"
)

// TagKinds lists the tag kinds in table order.
var TagKinds = []string{TagTopic, TagPrimaryEvidence, TagSupportingEvidence, TagKeywordPrimary, TagKeywordSecondary}

const sqliteSchema = `
CREATE TABLE requirements (
	req_id TEXT PRIMARY KEY,
	instrument_code TEXT NOT NULL,
	legal_ref TEXT NOT NULL,
	article INTEGER NOT NULL,
	paragraph INTEGER NOT NULL,
	point TEXT NOT NULL DEFAULT '',
	text_primary TEXT NOT NULL,
	text_secondary TEXT NOT NULL,
	has_secondary INTEGER NOT NULL,
	lang_primary TEXT NOT NULL,
	lang_secondary TEXT NOT NULL,
	eli TEXT NOT NULL DEFAULT '',
	source_hash_primary TEXT NOT NULL,
	source_hash_secondary TEXT NOT NULL
);

CREATE TABLE requirement_tags (
	req_id TEXT NOT NULL REFERENCES requirements(req_id),
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (req_id, kind, value)
);

CREATE INDEX idx_requirement_tags_value ON requirement_tags(kind, value);
CREATE INDEX idx_requirements_instrument ON requirements(instrument_code, article, paragraph);
`

// WriteRequirementsSQLite exports requirements to a fresh SQLite database.
// The database is built next to path and renamed into place.
func WriteRequirementsSQLite(ctx context.Context, path string, requirements []synth.Requirement) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := writeSQLite(ctx, tmpPath, requirements); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func writeSQLite(ctx context.Context, path string, requirements []synth.Requirement) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertRequirement, err := tx.PrepareContext(ctx, `
		INSERT INTO requirements (
			req_id, instrument_code, legal_ref, article, paragraph, point,
			text_primary, text_secondary, has_secondary, lang_primary, lang_secondary,
			eli, source_hash_primary, source_hash_secondary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertRequirement.Close()

	insertTag, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO requirement_tags (req_id, kind, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer insertTag.Close()

	for _, r := range requirements {
		_, err := insertRequirement.ExecContext(ctx,
			r.ReqID, r.InstrumentCode, r.LegalRef, r.Article, r.Paragraph, r.Point,
			r.TextPrimary, r.TextSecondary, r.HasSecondary, r.LangPrimary, r.LangSecondary,
			r.ELI, r.SourceHashPrimary, r.SourceHashSecondary)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.ReqID, err)
		}

		tags := map[string][]string{
			TagTopic:              r.TopicTags,
			TagPrimaryEvidence:    r.PrimaryEvidenceTypes,
			TagSupportingEvidence: r.SupportingEvidenceTypes,
			TagKeywordPrimary:     r.KeywordsPrimary,
			TagKeywordSecondary:   r.KeywordsSecondary,
		}
		for kind, values := range tags {
			for _, value := range values {
				if _, err := insertTag.ExecContext(ctx, r.ReqID, kind, value); err != nil {
					return fmt.Errorf("failed to tag %s: %w", r.ReqID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// QueryReqIDsByTag returns the sorted req_ids carrying a tag of the given
// kind in an exported database.
func QueryReqIDsByTag(ctx context.Context, path, kind, value string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT req_id FROM requirement_tags WHERE kind = ? AND value = ? ORDER BY req_id`, kind, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan req_id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
