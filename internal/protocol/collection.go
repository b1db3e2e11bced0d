package protocol

import (
	"context"
	"log"
	"strings"

	"ethscriptions-indexer/internal/store"
)

func handleCollection(ctx context.Context, st *store.Store, logger *log.Logger, pctx Context, p *payload) {
	switch p.Op {
	case "create", "create_collection_and_add_self":
		addSelf := p.Op == "create_collection_and_add_self"
		itemMeta := ""
		if p.Item != nil {
			itemMeta = p.Item.Metadata
		}
		applied, err := st.CreateCollection(ctx, pctx.InscriptionID, p.Name, p.Symbol, p.Description,
			int64OrZero(p.MaxSupply), pctx.Creator, addSelf, pctx.InscriptionID, itemMeta)
		if err != nil {
			logger.Printf("protocol: collection create error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "collection already exists")
		}

	case "add_self_to_collection", "add":
		if p.CollectionID == "" {
			logDrop(logger, pctx.InscriptionID, p.Op, "missing collection_id")
			return
		}
		itemID := pctx.InscriptionID
		itemMeta := ""
		if p.Op == "add" {
			if p.Item == nil || p.Item.InscriptionID == "" {
				logDrop(logger, pctx.InscriptionID, p.Op, "missing item.id")
				return
			}
			itemID = p.Item.InscriptionID
			itemMeta = p.Item.Metadata
		} else if p.Item != nil {
			itemMeta = p.Item.Metadata
		}
		applied, err := st.AddCollectionItem(ctx, p.CollectionID, itemID, itemMeta)
		if err != nil {
			logger.Printf("protocol: add collection item error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "collection missing, locked, or at max_supply")
		}

	case "edit_collection":
		if p.CollectionID == "" {
			logDrop(logger, pctx.InscriptionID, p.Op, "missing collection_id")
			return
		}
		var name, symbol, description *string
		if p.Name != "" {
			name = &p.Name
		}
		if p.Symbol != "" {
			symbol = &p.Symbol
		}
		if p.Description != "" {
			description = &p.Description
		}
		applied, err := st.EditCollection(ctx, p.CollectionID, pctx.Creator, name, symbol, description)
		if err != nil {
			logger.Printf("protocol: edit collection error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "collection missing, locked, or not owner")
		}

	case "lock_collection":
		if p.CollectionID == "" {
			logDrop(logger, pctx.InscriptionID, p.Op, "missing collection_id")
			return
		}
		applied, err := st.LockCollection(ctx, p.CollectionID, pctx.Creator)
		if err != nil {
			logger.Printf("protocol: lock collection error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "collection missing, not owner, or already locked")
		}

	case "transfer_ownership":
		if p.CollectionID == "" || p.NewOwner == "" {
			logDrop(logger, pctx.InscriptionID, p.Op, "missing collection_id or new_owner")
			return
		}
		applied, err := st.TransferCollectionOwnership(ctx, p.CollectionID, pctx.Creator, strings.ToLower(p.NewOwner))
		if err != nil {
			logger.Printf("protocol: transfer collection ownership error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "collection missing or not owner")
		}

	default:
		logDrop(logger, pctx.InscriptionID, p.Op, "unrecognized collection op")
	}
}
