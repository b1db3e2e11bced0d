package protocol

import (
	"context"
	"log"
	"strings"

	"ethscriptions-indexer/internal/store"
)

func handleFixedDenom(ctx context.Context, st *store.Store, logger *log.Logger, pctx Context, p *payload) {
	switch p.Op {
	case "deploy":
		tick, ok := validTick(p.Tick)
		if !ok {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid tick")
			return
		}
		max, lim := int64OrZero(p.Max), int64OrZero(p.Lim)
		if max <= 0 || lim <= 0 || max%lim != 0 {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid max/lim")
			return
		}
		applied, err := st.DeployFixedToken(ctx, tick, max, lim)
		if err != nil {
			logger.Printf("protocol: deploy fixed token error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "tick already deployed")
		}

	case "mint":
		tick, ok := validTick(p.Tick)
		if !ok {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid tick")
			return
		}
		token, err := st.GetFixedToken(ctx, tick)
		if err != nil {
			logger.Printf("protocol: load fixed token error: %v", err)
			return
		}
		if token == nil {
			logDrop(logger, pctx.InscriptionID, p.Op, "unknown tick")
			return
		}
		amt := token.Denomination
		if p.Amt != nil {
			amt = int64(*p.Amt)
		}
		if amt != token.Denomination {
			logDrop(logger, pctx.InscriptionID, p.Op, "amt must equal lim")
			return
		}
		applied, err := st.MintFixed(ctx, tick, pctx.InscriptionID, pctx.Creator, amt)
		if err != nil {
			logger.Printf("protocol: mint fixed token error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "supply exhausted")
		}

	default:
		logDrop(logger, pctx.InscriptionID, p.Op, "unrecognized fixed-denomination op")
	}
}

func handleBondingCurve(ctx context.Context, st *store.Store, logger *log.Logger, pctx Context, p *payload) {
	switch p.Op {
	case "deploy":
		tick, ok := validTick(p.Tick)
		if !ok {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid tick")
			return
		}
		max, lim := int64OrZero(p.Max), int64OrZero(p.Lim)
		basePrice, priceIncrement := int64OrZero(p.BasePrice), int64OrZero(p.PriceIncrement)
		if max <= 0 || lim <= 0 || max%lim != 0 || basePrice < 0 || priceIncrement < 0 {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid deploy parameters")
			return
		}
		applied, err := st.DeployBondingToken(ctx, tick, max, lim, basePrice, priceIncrement)
		if err != nil {
			logger.Printf("protocol: deploy bonding token error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "tick already deployed")
		}

	case "mint":
		tick, ok := validTick(p.Tick)
		if !ok {
			logDrop(logger, pctx.InscriptionID, p.Op, "invalid tick")
			return
		}
		token, err := st.GetBondingToken(ctx, tick)
		if err != nil {
			logger.Printf("protocol: load bonding token error: %v", err)
			return
		}
		if token == nil {
			logDrop(logger, pctx.InscriptionID, p.Op, "unknown tick")
			return
		}
		amt := token.Denomination
		if p.Amt != nil {
			amt = int64(*p.Amt)
		}
		if amt != token.Denomination {
			logDrop(logger, pctx.InscriptionID, p.Op, "amt must equal denomination")
			return
		}
		applied, err := st.MintBonding(ctx, tick, pctx.InscriptionID, pctx.Creator, amt)
		if err != nil {
			logger.Printf("protocol: mint bonding token error: %v", err)
			return
		}
		if !applied {
			logDrop(logger, pctx.InscriptionID, p.Op, "supply exhausted")
		}

	default:
		logDrop(logger, pctx.InscriptionID, p.Op, "unrecognized bonding-curve op")
	}
}

func validTick(tick string) (string, bool) {
	t := strings.ToLower(tick)
	if t == "" || len(t) > maxTickLen {
		return "", false
	}
	return t, true
}
