package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/types"
)

// TitleStats is the canonical shape for per-title statistics. The backend
// still answers with a mix of legacy French field names and a nested stats
// object depending on the entity's age; normalizeStats is the single place
// that mess is resolved.
type TitleStats struct {
	Views         int64           `json:"views"`
	UniqueViewers int64           `json:"uniqueViewers"`
	WatchSeconds  int64           `json:"watchSeconds"`
	Likes         int64           `json:"likes"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// TitleStats fetches and normalizes statistics for one entity.
func (c *Client) TitleStats(ctx context.Context, kind types.EntityKind, id string) (TitleStats, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/%s/%s/stats", kind, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return TitleStats{}, err
	}
	return normalizeStats(raw)
}

type rawStats struct {
	Views         *int64           `json:"views"`
	Vues          *int64           `json:"vues"`
	UniqueViewers *int64           `json:"uniqueViewers"`
	Spectateurs   *int64           `json:"spectateurs"`
	WatchSeconds  *int64           `json:"watchSeconds"`
	DureeSeconds  *int64           `json:"dureeVisionnage"`
	Likes         *int64           `json:"likes"`
	Jaime         *int64           `json:"jaime"`
	Revenue       *decimal.Decimal `json:"revenue"`
	Revenus       *decimal.Decimal `json:"revenus"`
	Stats         *struct {
		Views        *int64 `json:"views"`
		WatchSeconds *int64 `json:"watch_seconds"`
		Likes        *int64 `json:"likes"`
	} `json:"stats"`
}

// normalizeStats maps every known historical stats shape onto TitleStats.
// Precedence is current name, then legacy name, then the nested stats object.
func normalizeStats(raw json.RawMessage) (TitleStats, error) {
	var in rawStats
	if err := json.Unmarshal(raw, &in); err != nil {
		return TitleStats{}, pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "decoding stats body")
	}

	out := TitleStats{}
	out.Views = firstInt64(in.Views, in.Vues, nestedViews(in))
	out.UniqueViewers = firstInt64(in.UniqueViewers, in.Spectateurs)
	out.WatchSeconds = firstInt64(in.WatchSeconds, in.DureeSeconds, nestedWatchSeconds(in))
	out.Likes = firstInt64(in.Likes, in.Jaime, nestedLikes(in))
	if in.Revenue != nil {
		out.Revenue = *in.Revenue
	} else if in.Revenus != nil {
		out.Revenue = *in.Revenus
	}
	return out, nil
}

func nestedViews(in rawStats) *int64 {
	if in.Stats == nil {
		return nil
	}
	return in.Stats.Views
}

func nestedWatchSeconds(in rawStats) *int64 {
	if in.Stats == nil {
		return nil
	}
	return in.Stats.WatchSeconds
}

func nestedLikes(in rawStats) *int64 {
	if in.Stats == nil {
		return nil
	}
	return in.Stats.Likes
}

func firstInt64(candidates ...*int64) int64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}
