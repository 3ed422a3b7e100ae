package model

import (
	"sort"
	"time"
)

type RecordKind string

const (
	RecordKindTransaction  RecordKind = "transaction"
	RecordKindSubscription RecordKind = "subscription"
)

// AdminRecord is one row of the support/reconciliation view. Exactly one of
// Transaction or Subscription is set, matching Kind.
type AdminRecord struct {
	Kind         RecordKind
	CreatedAt    time.Time
	Transaction  *Transaction
	Subscription *Subscription
}

// MergeAdminRecords tags both sets and orders them newest first.
func MergeAdminRecords(txs []*Transaction, subs []*Subscription) []AdminRecord {
	out := make([]AdminRecord, 0, len(txs)+len(subs))
	for _, t := range txs {
		out = append(out, AdminRecord{Kind: RecordKindTransaction, CreatedAt: t.CreatedAt, Transaction: t})
	}
	for _, s := range subs {
		out = append(out, AdminRecord{Kind: RecordKindSubscription, CreatedAt: s.CreatedAt, Subscription: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
