package service

import (
	"context"

	"PairLink/module/pairing/store"
)

// directory adapts the durable store to the reconciler's double-check
// interface.
type directory struct {
	st store.Store
}

func (d directory) Lookup(ctx context.Context, userID string) (string, string, bool, error) {
	u, err := d.st.GetUser(ctx, userID)
	if err != nil {
		return "", "", false, err
	}
	if u == nil {
		return "", "", false, nil
	}
	return u.PartnerID, u.DisplayName, true, nil
}

func (d directory) Unpair(ctx context.Context, userID, partnerID string) error {
	return d.st.Unpair(ctx, userID, partnerID)
}
