// Package store implements the Checkpoint Store and State Materializer: the
// only component that touches the relational store. It is built on
// database/sql plus modernc.org/sqlite, exactly as geth-11-storage and
// geth-17-indexer persist their results — a pure-Go sqlite driver, no cgo.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel drop reasons. None of these is returned or logged by this
// package: Apply* report a drop as applied=false or IsNew=false with a nil
// error.
var (
	ErrDuplicateInscription = errors.New("store: duplicate inscription absorbed")
	ErrOwnerMismatch        = errors.New("store: transfer owner mismatch")
	ErrInscriptionNotFound  = errors.New("store: inscription not found")
)

// Store wraps the sqlite connection and exposes the Checkpoint Store and
// State Materializer operations.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (creating if necessary) the sqlite database at dsn and applies
// the schema.
func Open(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "store: ", log.LstdFlags)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	// The Materializer relies on single-writer, serialized transactions
	// sqlite's own writer lock already enforces this, but capping
	// the pool at one connection avoids SQLITE_BUSY churn under modernc's
	// driver with concurrent readers from the status/Stats path.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadCheckpoint returns the last fully-processed block number for name, and
// false if no checkpoint has ever been recorded.
func (s *Store) LoadCheckpoint(ctx context.Context, name string) (uint64, bool, error) {
	var last uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_block FROM checkpoints WHERE indexer_name = ?`, name).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: load checkpoint: %w", err)
	}
	return last, true, nil
}

// SaveCheckpoint upserts the checkpoint for name to block, recorded at ts.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, block uint64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints(indexer_name, last_block, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(indexer_name) DO UPDATE SET last_block = excluded.last_block, updated_at = excluded.updated_at
	`, name, block, ts.Unix())
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	return nil
}

// Inscription is the read-side projection of an inscription row.
type Inscription struct {
	ID                string
	BaseHash          string
	ESIP6             bool
	ESIP6Sequence     *int
	ContentType       string
	Creator           string
	CurrentOwner      string
	CreationTx        string
	CreationBlock     uint64
	CreationTimestamp uint64
	CreatedByContract bool
	CreatorContract   *string
}

// GetInscription loads an inscription by id.
func (s *Store) GetInscription(ctx context.Context, id string) (*Inscription, error) {
	return s.getInscriptionTx(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) getInscriptionTx(ctx context.Context, q querier, id string) (*Inscription, error) {
	var in Inscription
	var esip6 int
	var esip6Seq sql.NullInt64
	var createdByContract int
	var creatorContract sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, base_hash, esip6, esip6_sequence, content_type, creator, current_owner,
		       creation_tx, creation_block, creation_timestamp, created_by_contract, creator_contract
		FROM inscriptions WHERE id = ?`, id).Scan(
		&in.ID, &in.BaseHash, &esip6, &esip6Seq, &in.ContentType, &in.Creator, &in.CurrentOwner,
		&in.CreationTx, &in.CreationBlock, &in.CreationTimestamp, &createdByContract, &creatorContract,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get inscription %s: %w", id, err)
	}
	in.ESIP6 = esip6 != 0
	in.CreatedByContract = createdByContract != 0
	if esip6Seq.Valid {
		v := int(esip6Seq.Int64)
		in.ESIP6Sequence = &v
	}
	if creatorContract.Valid {
		v := creatorContract.String
		in.CreatorContract = &v
	}
	return &in, nil
}

// CreateInput is what the Block Processor hands the Materializer for a
// Create/CreateContract intent.
type CreateInput struct {
	ContentHash       string // base hash, no ESIP-6 suffix
	ContentType       string
	Creator           string
	InitialOwner      string
	ESIP6             bool
	CreatedByContract bool
	CreatorContract   *string
	CreationTx        string
	CreationBlock     uint64
	CreationTimestamp uint64
}

// CreateResult reports the outcome of ApplyCreate.
type CreateResult struct {
	ID    string
	IsNew bool // false if absorbed as a duplicate or a replay of the same tx
}

// ApplyCreate materializes a Create intent. Identity resolution:
//
//   - If an inscription already exists with the same (creation_tx, base_hash)
//     pair, this is a replay of a previously-applied intent (block
//     reprocessing); it is returned as IsNew=false with the existing ID, and
//     no new row or ESIP-6 sequence is consumed.
//   - Otherwise, for ESIP-6, the target id is "<hash>-N" where N is one plus
//     the current count of ESIP-6 siblings sharing base_hash (the plain,
//     non-ESIP-6 row sharing that hash, if any, is not itself numbered and
//     does not consume a sequence slot); for the non-ESIP-6 case the target
//     id is the bare hash, and a uniqueness conflict means some other
//     transaction already claimed it — absorbed silently (IsNew=false).
func (s *Store) ApplyCreate(ctx context.Context, in CreateInput) (CreateResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CreateResult{}, fmt.Errorf("store: begin create: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM inscriptions WHERE creation_tx = ? AND base_hash = ?`,
		in.CreationTx, in.ContentHash).Scan(&existingID)
	if err == nil {
		return CreateResult{ID: existingID, IsNew: false}, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return CreateResult{}, fmt.Errorf("store: check replay: %w", err)
	}

	targetID := in.ContentHash
	var seq *int
	if in.ESIP6 {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM inscriptions WHERE base_hash = ? AND esip6 = 1`, in.ContentHash).Scan(&count); err != nil {
			return CreateResult{}, fmt.Errorf("store: count siblings: %w", err)
		}
		n := count + 1
		seq = &n
		targetID = fmt.Sprintf("%s-%d", in.ContentHash, n)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inscriptions (
			id, base_hash, esip6, esip6_sequence, content_type, creator, current_owner,
			creation_tx, creation_block, creation_timestamp, created_by_contract, creator_contract
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, targetID, in.ContentHash, boolToInt(in.ESIP6), seq, in.ContentType, in.Creator, in.InitialOwner,
		in.CreationTx, in.CreationBlock, in.CreationTimestamp, boolToInt(in.CreatedByContract), in.CreatorContract)
	if err != nil {
		if isUniqueConflict(err) {
			return CreateResult{ID: targetID, IsNew: false}, nil
		}
		return CreateResult{}, fmt.Errorf("store: insert inscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CreateResult{}, fmt.Errorf("store: commit create: %w", err)
	}
	return CreateResult{ID: targetID, IsNew: true}, nil
}

// TransferInput is what the Block Processor hands the Materializer for a
// Transfer/ContractTransfer intent.
type TransferInput struct {
	InscriptionID   string
	To              string
	ExpectedFrom    *string // nil means "no owner check" (ESIP-1)
	TxHash          string
	BlockNumber     uint64
	Timestamp       uint64
	LogIndex        *uint
	ContractAddress *string
	TransferType    string
}

// ApplyTransfer materializes a Transfer/ContractTransfer intent using a
// compare-and-set update against the inscription's current owner: this keeps
// the owner-mismatch check and the write itself atomic without a global
// lock, and makes the write idempotent across block reprocessing. Returns
// applied=false, nil error for every "drop silently" disposition (unknown
// inscription, owner mismatch, or a replay that no longer matches).
func (s *Store) ApplyTransfer(ctx context.Context, in TransferInput) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin transfer: %w", err)
	}
	defer tx.Rollback()

	var currentOwner string
	err = tx.QueryRowContext(ctx,
		`SELECT current_owner FROM inscriptions WHERE id = ?`, in.InscriptionID).Scan(&currentOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load owner: %w", err)
	}

	expected := currentOwner
	if in.ExpectedFrom != nil {
		if !strings.EqualFold(currentOwner, *in.ExpectedFrom) {
			return false, nil
		}
		expected = *in.ExpectedFrom
	} else if strings.EqualFold(in.To, currentOwner) {
		// No owner check (ESIP-1) and the recipient already holds the
		// inscription: either a replay of this exact transfer, or a genuine
		// no-op transfer-to-self. The CAS WHERE clause below would match
		// trivially (current_owner = expected = currentOwner) and report a
		// row changed even though nothing did — short-circuit instead of
		// relying on RowsAffected to catch a no-op write.
		return false, nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE inscriptions SET current_owner = ? WHERE id = ? AND current_owner = ?`,
		in.To, in.InscriptionID, expected)
	if err != nil {
		return false, fmt.Errorf("store: update owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO transfers (
			inscription_id, from_addr, to_addr, tx_hash, block_number, timestamp,
			log_index, contract_address, transfer_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.InscriptionID, expected, in.To, in.TxHash, in.BlockNumber, in.Timestamp,
		in.LogIndex, in.ContractAddress, in.TransferType)
	if err != nil {
		return false, fmt.Errorf("store: insert transfer: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE token_notes_fixed SET owner = ? WHERE inscription_id = ?`, in.To, in.InscriptionID); err != nil {
		return false, fmt.Errorf("store: mirror fixed token notes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE token_notes_bonding SET owner = ? WHERE inscription_id = ?`, in.To, in.InscriptionID); err != nil {
		return false, fmt.Errorf("store: mirror bonding token notes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit transfer: %w", err)
	}
	return true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConflict reports whether err is a sqlite UNIQUE constraint
// violation. modernc.org/sqlite surfaces these as *sqlite.Error with a
// message containing "UNIQUE constraint failed"; matching on that text
// avoids a direct dependency on the driver's internal error code constants.
func isUniqueConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Stats is a small read-side helper (not part of the core pipeline) used by
// tests and the -status CLI flag to check invariants mechanically.
type Stats struct {
	Inscriptions  int64
	Transfers     int64
	Collections   int64
	TokensFixed   int64
	TokensBonding int64
}

// LoadStats returns row counts across the core tables.
func (s *Store) LoadStats(ctx context.Context) (Stats, error) {
	var st Stats
	rows := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM inscriptions", &st.Inscriptions},
		{"SELECT COUNT(*) FROM transfers", &st.Transfers},
		{"SELECT COUNT(*) FROM collections", &st.Collections},
		{"SELECT COUNT(*) FROM tokens_fixed", &st.TokensFixed},
		{"SELECT COUNT(*) FROM tokens_bonding", &st.TokensBonding},
	}
	for _, r := range rows {
		if err := s.db.QueryRowContext(ctx, r.query).Scan(r.dest); err != nil {
			return Stats{}, fmt.Errorf("store: stats: %w", err)
		}
	}
	return st, nil
}
