package store

// schema is applied with CREATE TABLE/INDEX IF NOT EXISTS, the same
// migration-free approach geth-11-storage and geth-17-indexer use for their
// sqlite demos: one DDL blob executed at startup. Schema migrations proper
// are an explicitly out-of-scope collaborator.
const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	indexer_name TEXT PRIMARY KEY,
	last_block   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS inscriptions (
	id                   TEXT PRIMARY KEY,
	base_hash            TEXT NOT NULL,
	esip6                INTEGER NOT NULL DEFAULT 0,
	esip6_sequence       INTEGER,
	content_type         TEXT NOT NULL,
	creator              TEXT NOT NULL,
	current_owner        TEXT NOT NULL,
	creation_tx          TEXT NOT NULL,
	creation_block       INTEGER NOT NULL,
	creation_timestamp   INTEGER NOT NULL,
	created_by_contract  INTEGER NOT NULL DEFAULT 0,
	creator_contract     TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_inscriptions_base_hash_unique
	ON inscriptions(base_hash) WHERE esip6 = 0;
CREATE INDEX IF NOT EXISTS idx_inscriptions_current_owner ON inscriptions(current_owner);
CREATE INDEX IF NOT EXISTS idx_inscriptions_creator ON inscriptions(creator);
CREATE INDEX IF NOT EXISTS idx_inscriptions_creation_block ON inscriptions(creation_block);
CREATE INDEX IF NOT EXISTS idx_inscriptions_creation_tx_hash ON inscriptions(creation_tx, base_hash);

CREATE TABLE IF NOT EXISTS transfers (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	inscription_id   TEXT NOT NULL,
	from_addr        TEXT NOT NULL,
	to_addr          TEXT NOT NULL,
	tx_hash          TEXT NOT NULL,
	block_number     INTEGER NOT NULL,
	timestamp        INTEGER NOT NULL,
	log_index        INTEGER,
	contract_address TEXT,
	transfer_type    TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transfers_dedup
	ON transfers(tx_hash, inscription_id, COALESCE(log_index, -1));
CREATE INDEX IF NOT EXISTS idx_transfers_inscription ON transfers(inscription_id);

CREATE TABLE IF NOT EXISTS collections (
	id          TEXT PRIMARY KEY,
	name        TEXT,
	symbol      TEXT,
	description TEXT,
	max_supply  INTEGER NOT NULL,
	owner       TEXT NOT NULL,
	locked      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS collection_items (
	collection_id  TEXT NOT NULL,
	item_index     INTEGER NOT NULL,
	inscription_id TEXT NOT NULL,
	metadata       TEXT,
	PRIMARY KEY (collection_id, item_index)
);

CREATE TABLE IF NOT EXISTS tokens_fixed (
	tick        TEXT PRIMARY KEY,
	max_supply  INTEGER NOT NULL,
	denomination INTEGER NOT NULL,
	minted      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS token_notes_fixed (
	tick           TEXT NOT NULL,
	note_id        INTEGER NOT NULL,
	inscription_id TEXT NOT NULL,
	owner          TEXT NOT NULL,
	amount         INTEGER NOT NULL,
	PRIMARY KEY (tick, note_id)
);
CREATE INDEX IF NOT EXISTS idx_token_notes_fixed_inscription ON token_notes_fixed(inscription_id);

CREATE TABLE IF NOT EXISTS tokens_bonding (
	tick            TEXT PRIMARY KEY,
	max_supply      INTEGER NOT NULL,
	denomination    INTEGER NOT NULL,
	minted          INTEGER NOT NULL DEFAULT 0,
	base_price      INTEGER NOT NULL,
	price_increment INTEGER NOT NULL,
	reserve         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS token_notes_bonding (
	tick           TEXT NOT NULL,
	note_id        INTEGER NOT NULL,
	inscription_id TEXT NOT NULL,
	owner          TEXT NOT NULL,
	amount         INTEGER NOT NULL,
	PRIMARY KEY (tick, note_id)
);
CREATE INDEX IF NOT EXISTS idx_token_notes_bonding_inscription ON token_notes_bonding(inscription_id);
`
