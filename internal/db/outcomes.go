package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/prospect-reports/internal/schemas"
	"github.com/jonathan/prospect-reports/internal/types"
)

// DefaultListLimit caps ListOutcomes when no limit is given.
const DefaultListLimit = 100

// AppendOutcome validates and stores outcome, returning its document ID.
// Every call creates a new document.
func (db *DB) AppendOutcome(ctx context.Context, ownerID string, outcome *types.Outcome) (string, error) {
	const op = "append outcome"

	doc, err := prepareOutcome(ownerID, outcome)
	if err != nil {
		return "", err
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return "", &WriteError{Op: op, Code: CodeInvalid, Message: "failed to marshal outcome", Cause: err}
	}

	id := uuid.New()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO report_outcomes (id, owner_id, status, document, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, doc.OwnerID, string(doc.Status), jsonBytes, doc.CreatedAt,
	)
	if err != nil {
		return "", classify(op, err)
	}
	return id.String(), nil
}

// prepareOutcome checks ownership and schema validity before anything is
// sent to the database.
func prepareOutcome(ownerID string, outcome *types.Outcome) (*types.Outcome, error) {
	const op = "append outcome"

	if outcome == nil {
		return nil, &WriteError{Op: op, Code: CodeInvalid, Message: "outcome is nil"}
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, &WriteError{Op: op, Code: CodeInvalid, Message: "owner ID is required"}
	}
	if outcome.OwnerID != "" && outcome.OwnerID != ownerID {
		return nil, &WriteError{Op: op, Code: CodePermission, Message: "outcome belongs to a different owner"}
	}

	doc := *outcome
	doc.OwnerID = ownerID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	validator, err := schemas.OutcomeValidator()
	if err != nil {
		return nil, &WriteError{Op: op, Code: CodeInternal, Message: "outcome schema unavailable", Cause: err}
	}
	if err := validator.Validate(&doc); err != nil {
		return nil, &WriteError{Op: op, Code: CodeInvalid, Message: "outcome does not match schema", Cause: err}
	}
	return &doc, nil
}

// GetOutcome retrieves a stored outcome by document ID.
func (db *DB) GetOutcome(ctx context.Context, id string) (*types.StoredOutcome, error) {
	const op = "get outcome"

	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, &WriteError{Op: op, Code: CodeNotFound, Message: "invalid outcome ID", Cause: ErrNotFound}
	}

	row := db.pool.QueryRow(ctx,
		`SELECT id, document, stored_at FROM report_outcomes WHERE id = $1`,
		docID,
	)
	stored, err := scanOutcome(row)
	if err != nil {
		return nil, classify(op, err)
	}
	return stored, nil
}

// ListOutcomes returns an owner's outcomes, newest first.
func (db *DB) ListOutcomes(ctx context.Context, ownerID string, limit int) ([]types.StoredOutcome, error) {
	const op = "list outcomes"

	if strings.TrimSpace(ownerID) == "" {
		return nil, &WriteError{Op: op, Code: CodeInvalid, Message: "owner ID is required"}
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, document, stored_at FROM report_outcomes
		 WHERE owner_id = $1
		 ORDER BY stored_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var outcomes []types.StoredOutcome
	for rows.Next() {
		stored, err := scanOutcome(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		outcomes = append(outcomes, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return outcomes, nil
}

func scanOutcome(row pgx.Row) (*types.StoredOutcome, error) {
	var (
		id       uuid.UUID
		document []byte
		storedAt time.Time
	)
	if err := row.Scan(&id, &document, &storedAt); err != nil {
		return nil, err
	}

	stored := &types.StoredOutcome{ID: id.String(), StoredAt: storedAt}
	if err := json.Unmarshal(document, &stored.Outcome); err != nil {
		return nil, fmt.Errorf("failed to decode outcome %s: %w", id, err)
	}
	return stored, nil
}

// IsNotFound reports whether err means the outcome does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
