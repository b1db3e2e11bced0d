package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Collection is the read-side projection of a collection row.
type Collection struct {
	ID          string
	Name        string
	Symbol      string
	Description string
	MaxSupply   int64
	Owner       string
	Locked      bool
}

// GetCollection loads a collection by id, nil if absent.
func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	var locked int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, symbol, description, max_supply, owner, locked
		FROM collections WHERE id = ?`, id).Scan(
		&c.ID, &c.Name, &c.Symbol, &c.Description, &c.MaxSupply, &c.Owner, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get collection %s: %w", id, err)
	}
	c.Locked = locked != 0
	return &c, nil
}

// CreateCollection registers a new collection at id, owned by creator. If
// addSelfItem is true the registering inscription is also inserted as item 1
// (create_collection_and_add_self). Absorbed silently if id already exists.
func (s *Store) CreateCollection(ctx context.Context, id, name, symbol, description string, maxSupply int64, creator string, addSelfItem bool, selfInscriptionID, selfMetadata string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin create collection: %w", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM collections WHERE id = ?`, id).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("store: check collection exists: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (id, name, symbol, description, max_supply, owner, locked)
		VALUES (?, ?, ?, ?, ?, ?, 0)`, id, name, symbol, description, maxSupply, creator)
	if err != nil {
		return false, fmt.Errorf("store: insert collection: %w", err)
	}

	if addSelfItem {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collection_items (collection_id, item_index, inscription_id, metadata)
			VALUES (?, 1, ?, ?)`, id, selfInscriptionID, selfMetadata)
		if err != nil {
			return false, fmt.Errorf("store: insert self collection item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit create collection: %w", err)
	}
	return true, nil
}

// AddCollectionItem appends inscriptionID as the next dense item in
// collectionID. Dropped (false, nil) if the collection is missing, locked,
// or already at max_supply.
func (s *Store) AddCollectionItem(ctx context.Context, collectionID, inscriptionID, metadata string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin add item: %w", err)
	}
	defer tx.Rollback()

	var maxSupply int64
	var locked int
	err = tx.QueryRowContext(ctx, `SELECT max_supply, locked FROM collections WHERE id = ?`, collectionID).
		Scan(&maxSupply, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load collection: %w", err)
	}
	if locked != 0 {
		return false, nil
	}

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_items WHERE collection_id = ?`, collectionID).Scan(&count); err != nil {
		return false, fmt.Errorf("store: count items: %w", err)
	}
	nextIndex := count + 1
	if nextIndex > maxSupply {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_items (collection_id, item_index, inscription_id, metadata)
		VALUES (?, ?, ?, ?)`, collectionID, nextIndex, inscriptionID, metadata)
	if err != nil {
		return false, fmt.Errorf("store: insert item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit add item: %w", err)
	}
	return true, nil
}

// EditCollection applies a partial metadata update, gated on creator owning
// the collection. Dropped if the collection is missing, locked, or creator
// isn't the owner.
func (s *Store) EditCollection(ctx context.Context, collectionID, creator string, name, symbol, description *string) (bool, error) {
	col, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return false, err
	}
	if col == nil || col.Locked || col.Owner != creator {
		return false, nil
	}
	if name != nil {
		col.Name = *name
	}
	if symbol != nil {
		col.Symbol = *symbol
	}
	if description != nil {
		col.Description = *description
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE collections SET name = ?, symbol = ?, description = ? WHERE id = ?`,
		col.Name, col.Symbol, col.Description, collectionID)
	if err != nil {
		return false, fmt.Errorf("store: edit collection: %w", err)
	}
	return true, nil
}

// LockCollection sets locked := true, gated on ownership. Irreversible;
// locking an already-locked collection is a no-op (applied=false).
func (s *Store) LockCollection(ctx context.Context, collectionID, creator string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET locked = 1 WHERE id = ? AND owner = ? AND locked = 0`,
		collectionID, creator)
	if err != nil {
		return false, fmt.Errorf("store: lock collection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

// TransferCollectionOwnership updates owner, gated on the current owner
// matching creator.
func (s *Store) TransferCollectionOwnership(ctx context.Context, collectionID, creator, newOwner string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET owner = ? WHERE id = ? AND owner = ?`,
		newOwner, collectionID, creator)
	if err != nil {
		return false, fmt.Errorf("store: transfer collection ownership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

// FixedToken is the read-side projection of a tokens_fixed row.
type FixedToken struct {
	Tick         string
	MaxSupply    int64
	Denomination int64
	Minted       int64
}

// GetFixedToken loads a fixed-denomination token by tick, nil if absent.
func (s *Store) GetFixedToken(ctx context.Context, tick string) (*FixedToken, error) {
	var t FixedToken
	err := s.db.QueryRowContext(ctx,
		`SELECT tick, max_supply, denomination, minted FROM tokens_fixed WHERE tick = ?`, tick).
		Scan(&t.Tick, &t.MaxSupply, &t.Denomination, &t.Minted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get fixed token %s: %w", tick, err)
	}
	return &t, nil
}

// DeployFixedToken registers a new fixed-denomination token. Absorbed
// silently if tick already exists.
func (s *Store) DeployFixedToken(ctx context.Context, tick string, maxSupply, denomination int64) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens_fixed (tick, max_supply, denomination, minted) VALUES (?, ?, ?, 0)`,
		tick, maxSupply, denomination)
	if err != nil {
		if isUniqueConflict(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: deploy fixed token: %w", err)
	}
	return true, nil
}

// MintFixed mints one dense-indexed TokenNote of amount for tick, backed by
// inscriptionID, owned by owner, and atomically bumps Token.minted. Dropped
// if tick is unknown or minted+amount would exceed max_supply.
func (s *Store) MintFixed(ctx context.Context, tick, inscriptionID, owner string, amount int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin mint fixed: %w", err)
	}
	defer tx.Rollback()

	var maxSupply, minted int64
	err = tx.QueryRowContext(ctx,
		`SELECT max_supply, minted FROM tokens_fixed WHERE tick = ?`, tick).Scan(&maxSupply, &minted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load fixed token: %w", err)
	}
	if minted+amount > maxSupply {
		return false, nil
	}

	var noteCount int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM token_notes_fixed WHERE tick = ?`, tick).Scan(&noteCount); err != nil {
		return false, fmt.Errorf("store: count fixed notes: %w", err)
	}
	noteID := noteCount + 1

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_notes_fixed (tick, note_id, inscription_id, owner, amount)
		VALUES (?, ?, ?, ?, ?)`, tick, noteID, inscriptionID, owner, amount); err != nil {
		return false, fmt.Errorf("store: insert fixed note: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tokens_fixed SET minted = minted + ? WHERE tick = ?`, amount, tick); err != nil {
		return false, fmt.Errorf("store: bump fixed minted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit mint fixed: %w", err)
	}
	return true, nil
}

// BondingToken is the read-side projection of a tokens_bonding row.
type BondingToken struct {
	Tick           string
	MaxSupply      int64
	Denomination   int64
	Minted         int64
	BasePrice      int64
	PriceIncrement int64
	Reserve        int64
}

// GetBondingToken loads a bonding-curve token by tick, nil if absent.
func (s *Store) GetBondingToken(ctx context.Context, tick string) (*BondingToken, error) {
	var t BondingToken
	err := s.db.QueryRowContext(ctx, `
		SELECT tick, max_supply, denomination, minted, base_price, price_increment, reserve
		FROM tokens_bonding WHERE tick = ?`, tick).
		Scan(&t.Tick, &t.MaxSupply, &t.Denomination, &t.Minted, &t.BasePrice, &t.PriceIncrement, &t.Reserve)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get bonding token %s: %w", tick, err)
	}
	return &t, nil
}

// DeployBondingToken registers a new bonding-curve token with reserve = 0 (no
// payment-capture mechanism is defined by this system; price/market
// analytics is out of scope). Absorbed silently if tick already exists.
func (s *Store) DeployBondingToken(ctx context.Context, tick string, maxSupply, denomination, basePrice, priceIncrement int64) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens_bonding (tick, max_supply, denomination, minted, base_price, price_increment, reserve)
		VALUES (?, ?, ?, 0, ?, ?, 0)`, tick, maxSupply, denomination, basePrice, priceIncrement)
	if err != nil {
		if isUniqueConflict(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: deploy bonding token: %w", err)
	}
	return true, nil
}

// MintBonding mirrors MintFixed for the bonding-curve token family.
func (s *Store) MintBonding(ctx context.Context, tick, inscriptionID, owner string, amount int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin mint bonding: %w", err)
	}
	defer tx.Rollback()

	var maxSupply, minted int64
	err = tx.QueryRowContext(ctx,
		`SELECT max_supply, minted FROM tokens_bonding WHERE tick = ?`, tick).Scan(&maxSupply, &minted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load bonding token: %w", err)
	}
	if minted+amount > maxSupply {
		return false, nil
	}

	var noteCount int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM token_notes_bonding WHERE tick = ?`, tick).Scan(&noteCount); err != nil {
		return false, fmt.Errorf("store: count bonding notes: %w", err)
	}
	noteID := noteCount + 1

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_notes_bonding (tick, note_id, inscription_id, owner, amount)
		VALUES (?, ?, ?, ?, ?)`, tick, noteID, inscriptionID, owner, amount); err != nil {
		return false, fmt.Errorf("store: insert bonding note: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tokens_bonding SET minted = minted + ? WHERE tick = ?`, amount, tick); err != nil {
		return false, fmt.Errorf("store: bump bonding minted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit mint bonding: %w", err)
	}
	return true, nil
}
