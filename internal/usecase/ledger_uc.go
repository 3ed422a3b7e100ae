package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/logging"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

const (
	// HistoryLimit caps a user's payment history.
	HistoryLimit = 50
	// AdminDefaultLimit applies when the admin listing omits limit.
	AdminDefaultLimit = 100
	AdminMaxLimit     = 500
)

// LedgerUseCase holds the read-only views over transactions and subscriptions.
type LedgerUseCase interface {
	History(ctx context.Context, userID string) ([]*model.Transaction, error)
	// AdminRecords pages through both tables as one newest-first list.
	AdminRecords(ctx context.Context, limit, offset int) ([]model.AdminRecord, error)
}

type ledgerUC struct {
	transactions repository.TransactionRepository
	subs         repository.SubscriptionRepository
	log          *zerolog.Logger
}

func NewLedgerUseCase(transactions repository.TransactionRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{transactions: transactions, subs: subs, log: logger}
}

func (u *ledgerUC) History(ctx context.Context, userID string) ([]*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.History")()
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	txs, err := u.transactions.ListByUser(ctx, repository.NoTX, userID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	return txs, nil
}

func (u *ledgerUC) AdminRecords(ctx context.Context, limit, offset int) ([]model.AdminRecord, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.AdminRecords")()
	if limit <= 0 {
		limit = AdminDefaultLimit
	}
	if limit > AdminMaxLimit {
		limit = AdminMaxLimit
	}
	if offset < 0 {
		return nil, domain.ErrInvalidArgument
	}

	// The merged page [offset, offset+limit) can only draw on the newest
	// offset+limit rows of each table.
	window := offset + limit
	var (
		txs  []*model.Transaction
		subs []*model.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = u.transactions.ListAll(gctx, repository.NoTX, window, 0)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = u.subs.ListAll(gctx, repository.NoTX, window, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs := model.MergeAdminRecords(txs, subs)
	if offset >= len(recs) {
		return []model.AdminRecord{}, nil
	}
	recs = recs[offset:]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
