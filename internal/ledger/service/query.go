package service

import (
	"context"
	"fmt"
	"time"

	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	obslogger "github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/observability/tracing"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"go.uber.org/zap"
)

const verifyBatchSize = 500

// ListEntries pages through an account's history, newest first.
func (s *Service) ListEntries(ctx context.Context, req ledgerdomain.ListEntriesRequest) (*ledgerdomain.ListEntriesResponse, error) {
	accountID, err := normalizeAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	kind, err := ledgerdomain.ParseEntryKind(req.Kind)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, s.storageErr("list", err)
	}
	if acct == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}

	limit := pagination.NormalizePageSize(req.Limit)
	filter := ledgerdomain.ListFilter{
		AccountID: accountID,
		Kind:      kind,
		Limit:     limit + 1,
	}
	if cursor != nil {
		if cursor.Seq <= 0 {
			return nil, pagination.ErrInvalidCursor
		}
		filter.BeforeSeq = cursor.Seq
	}

	items, err := s.entries.ListByAccount(ctx, s.db, filter)
	if err != nil {
		return nil, s.storageErr("list", err)
	}

	page, info := pagination.BuildCursorPageInfo(items, limit, func(e ledgerdomain.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String(), Seq: e.Seq}
	})

	resp := &ledgerdomain.ListEntriesResponse{
		Entries:  make([]ledgerdomain.EntryResponse, 0, len(page)),
		PageInfo: info,
	}
	for _, e := range page {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	return resp, nil
}

// VerifyAccount replays the log up to the stored version and compares the
// result with the projection. Entries past that version belong to writes
// that committed after the read and are ignored.
func (s *Service) VerifyAccount(ctx context.Context, accountID string) (res *ledgerdomain.Verification, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	ctx, span := tracing.StartSpan(ctx, "ledger.VerifyAccount")
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		} else if !res.Consistent {
			outcome = metrics.OutcomeError
		}
		tracing.EndSpan(span, err, expectedErrors...)
		s.ledgerMetrics.ObserveOperation(metrics.OperationVerify, outcome, time.Since(start))
	}()

	id, err := normalizeAccountID(accountID)
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, s.storageErr(metrics.OperationVerify, err)
	}
	if acct == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}

	res = &ledgerdomain.Verification{
		AccountID:     acct.AccountID,
		StoredBalance: acct.Balance,
		StoredVersion: acct.Version,
	}
	issue := func(format string, args ...any) {
		res.Issues = append(res.Issues, fmt.Sprintf(format, args...))
	}

	var (
		running  int64
		lastSeq  int64
		consumed = map[int64]int64{}
		refunded = map[int64]int64{}
	)
	for lastSeq < acct.Version {
		batch, err := s.entries.Range(ctx, s.db, id, lastSeq, acct.Version, verifyBatchSize)
		if err != nil {
			return nil, s.storageErr(metrics.OperationVerify, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			if e.Seq != lastSeq+1 {
				issue("sequence gap: expected seq %d, found %d", lastSeq+1, e.Seq)
			}
			lastSeq = e.Seq

			switch e.Kind {
			case ledgerdomain.KindConsume:
				if e.Amount >= 0 {
					issue("entry %s: consume amount %d is not negative", e.ID, e.Amount)
				}
				consumed[int64(e.ID)] = -e.Amount
			case ledgerdomain.KindRefund, ledgerdomain.KindRecharge:
				if e.Amount <= 0 {
					issue("entry %s: %s amount %d is not positive", e.ID, e.Kind, e.Amount)
				}
				if e.Kind == ledgerdomain.KindRefund {
					if e.RelatedEntryID == nil {
						issue("entry %s: refund without original", e.ID)
					} else {
						refunded[int64(*e.RelatedEntryID)] += e.Amount
					}
				}
			default:
				issue("entry %s: unknown kind %q", e.ID, e.Kind)
			}

			if running+e.Amount != e.BalanceAfter {
				issue("entry %s: balance_after %d does not follow %d%+d", e.ID, e.BalanceAfter, running, e.Amount)
			}
			running += e.Amount
			if running < 0 {
				issue("entry %s: balance went negative (%d)", e.ID, running)
			}
			res.EntryCount++
		}
	}

	for original, total := range refunded {
		spent, ok := consumed[original]
		if !ok {
			issue("refunds reference unknown spend %d", original)
			continue
		}
		if total > spent {
			issue("spend %d refunded %d of %d", original, total, spent)
		}
	}

	res.ComputedBalance = running
	if res.ComputedBalance != res.StoredBalance {
		issue("stored balance %d differs from log total %d", res.StoredBalance, res.ComputedBalance)
	}
	if res.EntryCount != acct.Version {
		issue("stored version %d differs from entry count %d", acct.Version, res.EntryCount)
	}
	res.Consistent = len(res.Issues) == 0

	if !res.Consistent {
		obslogger.WithContext(ctx, s.log).Error("ledger verification failed",
			zap.String("account_id", id),
			zap.Strings("issues", res.Issues),
		)
	}
	return res, nil
}

func toEntryResponse(e ledgerdomain.LedgerEntry) ledgerdomain.EntryResponse {
	return ledgerdomain.EntryResponse{
		ID:               e.ID,
		AccountID:        e.AccountID,
		Seq:              e.Seq,
		Kind:             e.Kind,
		Amount:           e.Amount,
		BalanceAfter:     e.BalanceAfter,
		IdempotencyKey:   e.IdempotencyKey,
		RelatedEntryID:   e.RelatedEntryID,
		ModelName:        e.ModelName,
		QuestionCategory: e.QuestionCategory,
		Description:      e.Description,
		Metadata:         map[string]any(e.Metadata),
		CreatedAt:        e.CreatedAt,
	}
}
