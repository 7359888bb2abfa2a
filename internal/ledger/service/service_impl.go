package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/creditledger/internal/account/domain"
	"github.com/smallbiznis/creditledger/internal/accountlock"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	obslogger "github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/observability/tracing"
	"github.com/smallbiznis/creditledger/pkg/db"
	"github.com/smallbiznis/creditledger/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxAccountIDLen      = 64
	maxIdempotencyKeyLen = 191
	maxReasonLen         = 512

	defaultLockWait = 3 * time.Second
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Entries       ledgerdomain.Repository
	Accounts      accountdomain.Repository
	Catalog       costdomain.Service
	Locker        accountlock.Locker
	Config        config.Config          `optional:"true"`
	Clock         clock.Clock            `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	LedgerMetrics *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	entries       ledgerdomain.Repository
	accounts      accountdomain.Repository
	catalog       costdomain.Service
	locker        accountlock.Locker
	clock         clock.Clock
	lockWait      time.Duration
	metrics       *metrics.Metrics
	ledgerMetrics *metrics.LedgerMetrics
}

func New(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	lockWait := p.Config.Ledger.LockTimeout
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ledger.service"),
		genID:         p.GenID,
		entries:       p.Entries,
		accounts:      p.Accounts,
		catalog:       p.Catalog,
		locker:        p.Locker,
		clock:         clk,
		lockWait:      lockWait,
		metrics:       p.Metrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

// CheckAndDeduct charges the cost of one question against the account. A
// declined spend writes nothing; a repeated key returns the first outcome.
func (s *Service) CheckAndDeduct(ctx context.Context, req ledgerdomain.DeductRequest) (res *ledgerdomain.DeductResult, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	ctx, span := tracing.StartSpan(ctx, "ledger.CheckAndDeduct", attribute.String("ledger.kind", string(ledgerdomain.KindConsume)))
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		tracing.EndSpan(span, err, expectedErrors...)
		s.ledgerMetrics.ObserveOperation(metrics.OperationConsume, outcome, time.Since(start))
	}()

	accountID, err := normalizeAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	key, err := normalizeKey(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	modelName, err := costdomain.NormalizeModelName(req.ModelName)
	if err != nil {
		return nil, err
	}
	category, err := costdomain.ParseQuestionCategory(req.QuestionCategory)
	if err != nil {
		return nil, err
	}
	log := obslogger.ForOperation(ctx, s.log, metrics.OperationConsume, accountID).With(
		zap.String("model_name", modelName),
		zap.String("question_category", string(category)),
	)

	if existing, err := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindConsume, key); err != nil {
		return nil, s.storageErr(metrics.OperationConsume, err)
	} else if existing != nil {
		outcome = metrics.OutcomeReplayed
		return s.replayDeduct(ctx, existing, accountID)
	}

	cost, err := s.catalog.LookupCost(ctx, modelName, category)
	if err != nil {
		if errors.Is(err, costdomain.ErrUnknownPricing) {
			log.Warn("spend rejected: no price configured")
			return nil, err
		}
		return nil, s.storageErr(metrics.OperationConsume, err)
	}

	release, err := s.lockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	replayed := false
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.entries.FindByKey(ctx, tx, ledgerdomain.KindConsume, key)
		if err != nil {
			return err
		}
		if existing != nil {
			replayed = true
			res, err = s.replayDeduct(ctx, existing, accountID)
			return err
		}

		acct, err := s.accounts.FindForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledgerdomain.ErrAccountNotFound
		}
		if acct.Frozen() {
			return ledgerdomain.ErrAccountFrozen
		}

		if acct.Balance < cost {
			res = &ledgerdomain.DeductResult{
				Success:        false,
				Sufficient:     false,
				PriorBalance:   acct.Balance,
				NewBalance:     acct.Balance,
				RequiredAmount: cost,
			}
			return nil
		}

		entry := s.newEntry(ctx, acct, ledgerdomain.KindConsume, -cost, key, req.Metadata)
		entry.ModelName = modelName
		entry.QuestionCategory = string(category)
		entry.Description = strings.TrimSpace(req.Description)

		if err := s.append(ctx, tx, acct, entry); err != nil {
			return err
		}
		res = deductResult(entry)
		return nil
	})
	if err != nil {
		if s.isKeyRace(err) {
			return s.resolveDeductRace(ctx, key, accountID, err)
		}
		return nil, s.mapErr(metrics.OperationConsume, err)
	}

	switch {
	case replayed:
		outcome = metrics.OutcomeReplayed
	case !res.Success:
		outcome = metrics.OutcomeInsufficientFunds
		s.metrics.RecordInsufficientFunds(ctx, string(category))
		log.Warn("spend declined: insufficient funds",
			zap.Int64("balance", res.PriorBalance),
			zap.Int64("required", res.RequiredAmount),
		)
	default:
		s.metrics.RecordLedgerEntry(ctx, string(ledgerdomain.KindConsume), -res.DeductedAmount)
		log.Debug("spend recorded",
			zap.String("entry_id", res.EntryID.String()),
			zap.Int64("cost", res.DeductedAmount),
			zap.Int64("new_balance", res.NewBalance),
		)
	}
	return res, nil
}

// Refund returns credits for a previous spend identified by its idempotency key.
func (s *Service) Refund(ctx context.Context, req ledgerdomain.RefundRequest) (res *ledgerdomain.RefundResult, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	ctx, span := tracing.StartSpan(ctx, "ledger.Refund", attribute.String("ledger.kind", string(ledgerdomain.KindRefund)))
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		tracing.EndSpan(span, err, expectedErrors...)
		s.ledgerMetrics.ObserveOperation(metrics.OperationRefund, outcome, time.Since(start))
	}()

	key, err := normalizeKey(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len(reason) > maxReasonLen {
		return nil, ledgerdomain.ErrInvalidReason
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	refundKey := strings.TrimSpace(req.RefundKey)
	callerKeyed := refundKey != ""
	if callerKeyed {
		if refundKey, err = normalizeKey(refundKey); err != nil {
			return nil, err
		}
	} else {
		refundKey = ulid.Make().String()
	}

	original, err := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindConsume, key)
	if err != nil {
		return nil, s.storageErr(metrics.OperationRefund, err)
	}
	if original == nil {
		return nil, ledgerdomain.ErrOriginalNotFound
	}
	log := obslogger.ForOperation(ctx, s.log, metrics.OperationRefund, original.AccountID).With(
		zap.String("original_entry_id", original.ID.String()),
	)

	spent := -original.Amount
	amount := spent
	if req.Amount != nil {
		amount = *req.Amount
	}

	if callerKeyed {
		existing, err := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindRefund, refundKey)
		if err != nil {
			return nil, s.storageErr(metrics.OperationRefund, err)
		}
		if existing != nil {
			outcome = metrics.OutcomeReplayed
			s.metrics.RecordIdempotentReplay(ctx, metrics.OperationRefund)
			return s.replayRefund(ctx, s.db, existing, original)
		}
	}

	release, err := s.lockAccount(ctx, original.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	replayed := false
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		if callerKeyed {
			existing, err := s.entries.FindByKey(ctx, tx, ledgerdomain.KindRefund, refundKey)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed = true
				res, err = s.replayRefund(ctx, tx, existing, original)
				return err
			}
		}

		acct, err := s.accounts.FindForUpdate(ctx, tx, original.AccountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledgerdomain.ErrAccountNotFound
		}

		refunded, err := s.entries.SumRefunds(ctx, tx, original.ID, 0)
		if err != nil {
			return err
		}
		remaining := spent - refunded
		if amount > remaining {
			res = &ledgerdomain.RefundResult{
				Success:             false,
				OverRefund:          true,
				AccountID:           acct.AccountID,
				NewBalance:          acct.Balance,
				RemainingRefundable: remaining,
				OriginalEntryID:     original.ID,
				RefundKey:           refundKey,
			}
			return nil
		}
		if amount > math.MaxInt64-acct.Balance {
			return ledgerdomain.ErrInvalidAmount
		}

		metadata := map[string]any{
			"reason":                   reason,
			"original_idempotency_key": original.IdempotencyKey,
		}
		for k, v := range req.Metadata {
			if _, reserved := metadata[k]; !reserved {
				metadata[k] = v
			}
		}
		entry := s.newEntry(ctx, acct, ledgerdomain.KindRefund, amount, refundKey, metadata)
		entry.RelatedEntryID = &original.ID
		entry.ModelName = original.ModelName
		entry.QuestionCategory = original.QuestionCategory
		entry.Description = reason

		if err := s.append(ctx, tx, acct, entry); err != nil {
			return err
		}
		res = refundResult(entry, original, remaining-amount)
		return nil
	})
	if err != nil {
		if callerKeyed && s.isKeyRace(err) {
			winner, ferr := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindRefund, refundKey)
			if ferr == nil && winner != nil {
				outcome = metrics.OutcomeReplayed
				return s.replayRefund(ctx, s.db, winner, original)
			}
			return nil, fmt.Errorf("%w: refund key raced", ledgerdomain.ErrConcurrencyConflict)
		}
		return nil, s.mapErr(metrics.OperationRefund, err)
	}

	switch {
	case replayed:
		outcome = metrics.OutcomeReplayed
		s.metrics.RecordIdempotentReplay(ctx, metrics.OperationRefund)
	case !res.Success:
		outcome = metrics.OutcomeOverRefund
		log.Info("refund declined: exceeds original spend",
			zap.Int64("requested", amount),
			zap.Int64("remaining", res.RemainingRefundable),
		)
	default:
		s.metrics.RecordLedgerEntry(ctx, string(ledgerdomain.KindRefund), res.RefundedAmount)
		log.Info("refund recorded",
			zap.String("entry_id", res.EntryID.String()),
			zap.Int64("amount", res.RefundedAmount),
			zap.String("reason", reason),
		)
	}
	return res, nil
}

// GetBalance reads the projection without taking the account lock.
func (s *Service) GetBalance(ctx context.Context, accountID string) (*ledgerdomain.Balance, error) {
	id, err := normalizeAccountID(accountID)
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, s.storageErr("balance", err)
	}
	if acct == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return toBalance(acct), nil
}

// OpenAccount creates a zero balance. Opening an existing account returns it.
func (s *Service) OpenAccount(ctx context.Context, accountID string) (res *ledgerdomain.Balance, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.ledgerMetrics.ObserveOperation(metrics.OperationOpen, outcome, time.Since(start))
	}()

	id, err := normalizeAccountID(accountID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	created, err := s.accounts.Insert(ctx, s.db, &accountdomain.Account{
		AccountID: id,
		Balance:   0,
		Version:   0,
		Status:    accountdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, s.mapErr(metrics.OperationOpen, err)
	}
	if created {
		obslogger.WithContext(ctx, s.log).Info("account opened", zap.String("account_id", id))
	} else {
		outcome = metrics.OutcomeReplayed
	}
	return s.GetBalance(ctx, id)
}

// Recharge credits an account on behalf of the payment subsystem.
func (s *Service) Recharge(ctx context.Context, req ledgerdomain.RechargeRequest) (res *ledgerdomain.RechargeResult, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	ctx, span := tracing.StartSpan(ctx, "ledger.Recharge", attribute.String("ledger.kind", string(ledgerdomain.KindRecharge)))
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		tracing.EndSpan(span, err, expectedErrors...)
		s.ledgerMetrics.ObserveOperation(metrics.OperationRecharge, outcome, time.Since(start))
	}()

	accountID, err := normalizeAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	key, err := normalizeKey(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	if existing, err := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindRecharge, key); err != nil {
		return nil, s.storageErr(metrics.OperationRecharge, err)
	} else if existing != nil {
		outcome = metrics.OutcomeReplayed
		return s.replayRecharge(ctx, existing, accountID)
	}

	release, err := s.lockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	replayed := false
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.entries.FindByKey(ctx, tx, ledgerdomain.KindRecharge, key)
		if err != nil {
			return err
		}
		if existing != nil {
			replayed = true
			res, err = s.replayRecharge(ctx, existing, accountID)
			return err
		}

		acct, err := s.accounts.FindForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledgerdomain.ErrAccountNotFound
		}
		if req.Amount > math.MaxInt64-acct.Balance {
			return ledgerdomain.ErrInvalidAmount
		}

		entry := s.newEntry(ctx, acct, ledgerdomain.KindRecharge, req.Amount, key, req.Metadata)
		entry.Description = strings.TrimSpace(req.Description)
		if err := s.append(ctx, tx, acct, entry); err != nil {
			return err
		}
		res = rechargeResult(entry)
		return nil
	})
	if err != nil {
		if s.isKeyRace(err) {
			winner, ferr := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindRecharge, key)
			if ferr == nil && winner != nil {
				outcome = metrics.OutcomeReplayed
				return s.replayRecharge(ctx, winner, accountID)
			}
			return nil, fmt.Errorf("%w: recharge key raced", ledgerdomain.ErrConcurrencyConflict)
		}
		return nil, s.mapErr(metrics.OperationRecharge, err)
	}

	if replayed {
		outcome = metrics.OutcomeReplayed
		return res, nil
	}
	s.metrics.RecordLedgerEntry(ctx, string(ledgerdomain.KindRecharge), res.Amount)
	obslogger.ForOperation(ctx, s.log, metrics.OperationRecharge, accountID).Info("recharge recorded",
		zap.String("entry_id", res.EntryID.String()),
		zap.Int64("amount", res.Amount),
	)
	return res, nil
}

func (s *Service) FreezeAccount(ctx context.Context, accountID string) (*ledgerdomain.Balance, error) {
	return s.setStatus(ctx, accountID, accountdomain.StatusFrozen)
}

func (s *Service) UnfreezeAccount(ctx context.Context, accountID string) (*ledgerdomain.Balance, error) {
	return s.setStatus(ctx, accountID, accountdomain.StatusActive)
}

// setStatus runs under the account lock so a spend in flight either sees the
// old status or the new one, never a mix.
func (s *Service) setStatus(ctx context.Context, accountID string, status accountdomain.Status) (res *ledgerdomain.Balance, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.ledgerMetrics.ObserveOperation(metrics.OperationFreeze, outcome, time.Since(start))
	}()

	id, err := normalizeAccountID(accountID)
	if err != nil {
		return nil, err
	}
	release, err := s.lockAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var affected int64
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		affected, err = s.accounts.SetStatus(ctx, tx, id, status, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, s.mapErr(metrics.OperationFreeze, err)
	}
	if affected == 0 {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	obslogger.WithContext(ctx, s.log).Info("account status changed",
		zap.String("account_id", id),
		zap.String("status", string(status)),
	)
	return s.GetBalance(ctx, id)
}

func (s *Service) lockAccount(ctx context.Context, accountID string) (accountlock.Release, error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, accountID)
	s.ledgerMetrics.ObserveLockWait(s.locker.Backend(), time.Since(start))
	if err == nil {
		return release, nil
	}

	switch {
	case errors.Is(err, accountlock.ErrLockTimeout):
		s.ledgerMetrics.IncLockTimeout(s.locker.Backend())
		obslogger.WithContext(ctx, s.log).Warn("account lock wait exceeded", zap.String("account_id", accountID))
		return nil, fmt.Errorf("%w: account busy", ledgerdomain.ErrConcurrencyConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: account lock: %v", ledgerdomain.ErrStorageUnavailable, err)
	}
}

// newEntry builds the next entry in the account's sequence.
func (s *Service) newEntry(ctx context.Context, acct *accountdomain.Account, kind ledgerdomain.EntryKind, amount int64, key string, metadata map[string]any) *ledgerdomain.LedgerEntry {
	var meta datatypes.JSONMap
	if len(metadata) > 0 {
		meta = datatypes.JSONMap{}
		for k, v := range metadata {
			meta[k] = v
		}
	}
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		if meta == nil {
			meta = datatypes.JSONMap{}
		}
		meta["correlation_id"] = cid
	}

	return &ledgerdomain.LedgerEntry{
		ID:             s.genID.Generate(),
		AccountID:      acct.AccountID,
		Seq:            acct.Version + 1,
		Kind:           kind,
		Amount:         amount,
		BalanceAfter:   acct.Balance + amount,
		IdempotencyKey: key,
		Metadata:       meta,
		CreatedAt:      s.clock.Now(),
	}
}

// append writes the entry and moves the projection in the same transaction.
func (s *Service) append(ctx context.Context, tx *gorm.DB, acct *accountdomain.Account, entry *ledgerdomain.LedgerEntry) error {
	if entry.BalanceAfter < 0 {
		return ledgerdomain.ErrInsufficientFunds
	}
	if err := s.entries.Insert(ctx, tx, entry); err != nil {
		return err
	}
	return s.accounts.UpdateBalance(ctx, tx, acct.AccountID, acct.Version, entry.BalanceAfter, entry.CreatedAt)
}

func (s *Service) replayDeduct(ctx context.Context, entry *ledgerdomain.LedgerEntry, accountID string) (*ledgerdomain.DeductResult, error) {
	if entry.AccountID != accountID {
		obslogger.WithContext(ctx, s.log).Warn("idempotency key reused across accounts",
			zap.String("account_id", accountID),
			zap.String("entry_id", entry.ID.String()),
		)
		return nil, ledgerdomain.ErrIdempotencyKeyConflict
	}
	s.metrics.RecordIdempotentReplay(ctx, metrics.OperationConsume)
	return deductResult(entry), nil
}

func (s *Service) resolveDeductRace(ctx context.Context, key, accountID string, cause error) (*ledgerdomain.DeductResult, error) {
	winner, err := s.entries.FindByKey(ctx, s.db, ledgerdomain.KindConsume, key)
	if err == nil && winner != nil {
		return s.replayDeduct(ctx, winner, accountID)
	}
	obslogger.WithContext(ctx, s.log).Warn("spend lost a write race", zap.String("account_id", accountID), zap.Error(cause))
	return nil, fmt.Errorf("%w: concurrent write", ledgerdomain.ErrConcurrencyConflict)
}

// inTx runs fn in a transaction whose row-lock waits are capped at the
// account lock timeout.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.BoundLockWait(tx, s.lockWait); err != nil {
			return err
		}
		return fn(tx)
	})
}

func (s *Service) replayRefund(ctx context.Context, conn *gorm.DB, entry, original *ledgerdomain.LedgerEntry) (*ledgerdomain.RefundResult, error) {
	if entry.RelatedEntryID == nil || *entry.RelatedEntryID != original.ID {
		return nil, ledgerdomain.ErrIdempotencyKeyConflict
	}
	refunded, err := s.entries.SumRefunds(ctx, conn, original.ID, entry.Seq)
	if err != nil {
		return nil, err
	}
	return refundResult(entry, original, -original.Amount-refunded), nil
}

func (s *Service) replayRecharge(ctx context.Context, entry *ledgerdomain.LedgerEntry, accountID string) (*ledgerdomain.RechargeResult, error) {
	if entry.AccountID != accountID {
		return nil, ledgerdomain.ErrIdempotencyKeyConflict
	}
	s.metrics.RecordIdempotentReplay(ctx, metrics.OperationRecharge)
	return rechargeResult(entry), nil
}

func (s *Service) isKeyRace(err error) bool {
	return isDuplicateKey(err) || errors.Is(err, accountdomain.ErrVersionMismatch)
}

func deductResult(entry *ledgerdomain.LedgerEntry) *ledgerdomain.DeductResult {
	return &ledgerdomain.DeductResult{
		Success:        true,
		Sufficient:     true,
		PriorBalance:   entry.PriorBalance(),
		NewBalance:     entry.BalanceAfter,
		DeductedAmount: -entry.Amount,
		RequiredAmount: -entry.Amount,
		EntryID:        entry.ID,
	}
}

func refundResult(entry, original *ledgerdomain.LedgerEntry, remaining int64) *ledgerdomain.RefundResult {
	return &ledgerdomain.RefundResult{
		Success:             true,
		AccountID:           entry.AccountID,
		RefundedAmount:      entry.Amount,
		NewBalance:          entry.BalanceAfter,
		RemainingRefundable: remaining,
		EntryID:             entry.ID,
		OriginalEntryID:     original.ID,
		RefundKey:           entry.IdempotencyKey,
	}
}

func rechargeResult(entry *ledgerdomain.LedgerEntry) *ledgerdomain.RechargeResult {
	return &ledgerdomain.RechargeResult{
		AccountID:  entry.AccountID,
		Amount:     entry.Amount,
		NewBalance: entry.BalanceAfter,
		EntryID:    entry.ID,
	}
}

func toBalance(acct *accountdomain.Account) *ledgerdomain.Balance {
	return &ledgerdomain.Balance{
		AccountID: acct.AccountID,
		Balance:   acct.Balance,
		Version:   acct.Version,
		Status:    string(acct.Status),
		UpdatedAt: acct.UpdatedAt,
	}
}

func normalizeAccountID(value string) (string, error) {
	id := strings.TrimSpace(value)
	if id == "" || len(id) > maxAccountIDLen {
		return "", ledgerdomain.ErrInvalidAccount
	}
	return id, nil
}

func normalizeKey(value string) (string, error) {
	key := strings.TrimSpace(value)
	if key == "" || len(key) > maxIdempotencyKeyLen {
		return "", ledgerdomain.ErrInvalidIdempotencyKey
	}
	return key, nil
}
