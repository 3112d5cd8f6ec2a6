package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
	"github.com/trustmesh/escrow-engine/internal/core/fee"
	"github.com/trustmesh/escrow-engine/internal/core/identity"
	"github.com/trustmesh/escrow-engine/internal/metrics"
	"github.com/trustmesh/escrow-engine/internal/port"
)

// EscrowService is the order state machine. Every operation is serialized by
// a single mutex: the existence-flag check-and-set, the asset transfer and
// the fee-vault update of one operation never interleave with another's. A
// failed transfer rolls back any staged flag or vault mutation.
type EscrowService struct {
	mu sync.Mutex

	store   port.OrderStateStore
	vault   port.FeeVault
	journal port.EventJournal
	assets  port.AssetGateway
	access  port.AccessControl
	policy  *fee.Policy

	log *zap.Logger
	now func() time.Time
}

// Deps bundles the collaborators of an EscrowService. Logger and Clock are
// optional.
type Deps struct {
	Store   port.OrderStateStore
	Vault   port.FeeVault
	Journal port.EventJournal
	Assets  port.AssetGateway
	Access  port.AccessControl
	Policy  *fee.Policy
	Logger  *zap.Logger
	Clock   func() time.Time
}

func NewEscrowService(d Deps) *EscrowService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &EscrowService{
		store:   d.Store,
		vault:   d.Vault,
		journal: d.Journal,
		assets:  d.Assets,
		access:  d.Access,
		policy:  d.Policy,
		log:     d.Logger,
		now:     d.Clock,
	}
}

// CreateOrder escrows amount+fee from the caller. The caller is the sender.
// The returned draft timestamp must be supplied unchanged by any later
// resolution call for the id to match.
func (s *EscrowService) CreateOrder(ctx context.Context, caller, token common.Address, symbol string, recipient common.Address, amount, fee *big.Int, remark string) (common.Hash, int64, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return common.Hash{}, 0, err
	}
	if err := domain.ValidateAmount(fee); err != nil {
		return common.Hash{}, 0, err
	}

	exempt, err := s.access.IsFeeExempt(ctx, caller)
	if err != nil {
		return common.Hash{}, 0, fmt.Errorf("fee exemption lookup: %w", err)
	}
	if required := s.policy.Required(amount, exempt); fee.Cmp(required) != 0 {
		metrics.OperationFailures.WithLabelValues("create").Inc()
		return common.Hash{}, 0, fmt.Errorf("%w: declared %s, required %s", domain.ErrInvalidFee, fee, required)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	params := domain.OrderParams{
		Token:     token,
		Symbol:    symbol,
		Sender:    caller,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		DraftAt:   createdAt.Unix(),
	}
	id := identity.Derive(params)

	ok, err := s.store.MarkPending(ctx, id)
	if err != nil {
		return common.Hash{}, 0, fmt.Errorf("mark pending: %w", err)
	}
	if !ok {
		metrics.OperationFailures.WithLabelValues("create").Inc()
		return common.Hash{}, 0, fmt.Errorf("%w: %s", domain.ErrOrderExists, id)
	}

	total := new(big.Int).Add(amount, fee)
	if err := s.assets.Pull(ctx, token, caller, total); err != nil {
		if _, rbErr := s.store.TakePending(ctx, id); rbErr != nil {
			s.log.Error("rollback of pending marker failed", zap.Stringer("id", id), zap.Error(rbErr))
		}
		metrics.OperationFailures.WithLabelValues("create").Inc()
		return common.Hash{}, 0, fmt.Errorf("%w: pull %s: %v", domain.ErrTransferFailed, total, err)
	}

	s.appendCreated(ctx, domain.OrderCreated{
		ID:        id,
		Sender:    caller,
		Recipient: recipient,
		Token:     token,
		Symbol:    symbol,
		Amount:    amount,
		Fee:       fee,
		Remark:    remark,
		CreatedAt: createdAt,
	})
	metrics.OrdersCreated.Inc()
	s.log.Info("order created",
		zap.Stringer("id", id),
		zap.Stringer("sender", caller),
		zap.Stringer("recipient", recipient),
		zap.String("symbol", symbol),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
	)
	return id, params.DraftAt, nil
}

// ConfirmOrder releases the principal to the recipient. The caller is the
// sender; the id is re-derived with sender=caller, so only the original
// creator can reproduce it.
func (s *EscrowService) ConfirmOrder(ctx context.Context, caller, token common.Address, symbol string, recipient common.Address, amount, fee *big.Int, draftAt int64) error {
	params := domain.OrderParams{
		Token:     token,
		Symbol:    symbol,
		Sender:    caller,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		DraftAt:   draftAt,
	}
	return s.resolve(ctx, caller, params, domain.OutcomeConfirmed, recipient)
}

// ConfirmOrderByAdmin is ConfirmOrder with an explicit sender, restricted to
// administrators.
func (s *EscrowService) ConfirmOrderByAdmin(ctx context.Context, caller, token common.Address, symbol string, sender, recipient common.Address, amount, fee *big.Int, draftAt int64) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	params := domain.OrderParams{
		Token:     token,
		Symbol:    symbol,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		DraftAt:   draftAt,
	}
	return s.resolve(ctx, caller, params, domain.OutcomeConfirmed, recipient)
}

// RefundOrderByRecipient returns the principal to the sender. Only the
// order's recipient may voluntarily release funds this way.
func (s *EscrowService) RefundOrderByRecipient(ctx context.Context, caller, token common.Address, symbol string, sender, recipient common.Address, amount, fee *big.Int, draftAt int64) error {
	if caller != recipient {
		return fmt.Errorf("%w: caller %s is not the recipient", domain.ErrUnauthorized, caller.Hex())
	}
	params := domain.OrderParams{
		Token:     token,
		Symbol:    symbol,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		DraftAt:   draftAt,
	}
	return s.resolve(ctx, caller, params, domain.OutcomeRefunded, sender)
}

// RefundOrderByAdmin refunds without recipient consent, restricted to
// administrators.
func (s *EscrowService) RefundOrderByAdmin(ctx context.Context, caller, token common.Address, symbol string, sender, recipient common.Address, amount, fee *big.Int, draftAt int64) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	params := domain.OrderParams{
		Token:     token,
		Symbol:    symbol,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		DraftAt:   draftAt,
	}
	return s.resolve(ctx, caller, params, domain.OutcomeRefunded, sender)
}

// resolve runs the shared terminal transition: delete the pending marker,
// credit the fee, push the principal to payee. The vault credit precedes the
// push so a transfer failure can be unwound with local state only.
func (s *EscrowService) resolve(ctx context.Context, operator common.Address, params domain.OrderParams, outcome domain.Outcome, payee common.Address) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := identity.Derive(params)

	ok, err := s.store.TakePending(ctx, id)
	if err != nil {
		return fmt.Errorf("take pending: %w", err)
	}
	if !ok {
		metrics.OperationFailures.WithLabelValues("resolve").Inc()
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}

	if err := s.vault.Credit(ctx, params.Token, params.Fee); err != nil {
		if rbErr := s.store.RestorePending(ctx, id); rbErr != nil {
			s.log.Error("rollback of resolved marker failed", zap.Stringer("id", id), zap.Error(rbErr))
		}
		return fmt.Errorf("credit fee: %w", err)
	}

	if err := s.assets.Push(ctx, params.Token, payee, params.Amount); err != nil {
		if _, rbErr := s.vault.Debit(ctx, params.Token, params.Fee); rbErr != nil {
			s.log.Error("rollback of fee credit failed", zap.Stringer("id", id), zap.Error(rbErr))
		}
		if rbErr := s.store.RestorePending(ctx, id); rbErr != nil {
			s.log.Error("rollback of resolved marker failed", zap.Stringer("id", id), zap.Error(rbErr))
		}
		metrics.OperationFailures.WithLabelValues("resolve").Inc()
		return fmt.Errorf("%w: push %s to %s: %v", domain.ErrTransferFailed, params.Amount, payee.Hex(), err)
	}

	s.appendResolved(ctx, domain.OrderResolved{
		ID:         id,
		Sender:     params.Sender,
		Recipient:  params.Recipient,
		Outcome:    outcome,
		Operator:   operator,
		ResolvedAt: s.now(),
	})
	metrics.OrdersResolved.WithLabelValues(string(outcome)).Inc()
	s.log.Info("order resolved",
		zap.Stringer("id", id),
		zap.String("outcome", string(outcome)),
		zap.Stringer("operator", operator),
	)
	return nil
}

// UpdateFeeRate replaces the global rate for subsequent creations.
func (s *EscrowService) UpdateFeeRate(ctx context.Context, caller common.Address, rate int64) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if rate < 0 {
		return fmt.Errorf("%w: negative rate %d", domain.ErrInvalidAmount, rate)
	}
	s.policy.SetRate(rate)
	s.log.Info("fee rate updated", zap.Int64("rate", rate), zap.Stringer("operator", caller))
	return nil
}

// WithdrawFees pays out accrued fees for one token to the calling
// administrator.
func (s *EscrowService) WithdrawFees(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.vault.Debit(ctx, token, amount)
	if err != nil {
		return fmt.Errorf("debit fees: %w", err)
	}
	if !ok {
		metrics.OperationFailures.WithLabelValues("withdraw").Inc()
		return fmt.Errorf("%w: requested %s", domain.ErrInsufficientFeeBalance, amount)
	}

	if err := s.assets.Push(ctx, token, caller, amount); err != nil {
		if rbErr := s.vault.Credit(ctx, token, amount); rbErr != nil {
			s.log.Error("rollback of fee debit failed", zap.Stringer("token", token), zap.Error(rbErr))
		}
		metrics.OperationFailures.WithLabelValues("withdraw").Inc()
		return fmt.Errorf("%w: push %s to %s: %v", domain.ErrTransferFailed, amount, caller.Hex(), err)
	}

	s.appendWithdrawn(ctx, domain.FeeWithdrawn{
		Administrator: caller,
		Token:         token,
		Amount:        amount,
		WithdrawnAt:   s.now(),
	})
	metrics.FeeWithdrawals.Inc()
	s.log.Info("fees withdrawn",
		zap.Stringer("token", token),
		zap.String("amount", amount.String()),
		zap.Stringer("administrator", caller),
	)
	return nil
}

// FeeBalance reports the accrued fee balance for one token.
func (s *EscrowService) FeeBalance(ctx context.Context, caller, token common.Address) (*big.Int, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	return s.vault.Balance(ctx, token)
}

// GrantFeeExemption marks the addresses fee-exempt for subsequent creations.
func (s *EscrowService) GrantFeeExemption(ctx context.Context, caller common.Address, addrs []common.Address) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := s.access.GrantFeeExemption(ctx, addrs); err != nil {
		return fmt.Errorf("grant fee exemption: %w", err)
	}
	s.log.Info("fee exemption granted", zap.Int("addresses", len(addrs)), zap.Stringer("operator", caller))
	return nil
}

// FeeRate returns the current rate in thousandths.
func (s *EscrowService) FeeRate() int64 {
	return s.policy.Rate()
}

func (s *EscrowService) requireAdmin(ctx context.Context, caller common.Address) error {
	ok, err := s.access.IsAdministrator(ctx, caller)
	if err != nil {
		return fmt.Errorf("administrator lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an administrator", domain.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Journal appends are observability, not state: custody has already moved, so
// a failed append is logged and the operation still succeeds.
func (s *EscrowService) appendCreated(ctx context.Context, ev domain.OrderCreated) {
	if err := s.journal.OrderCreated(ctx, ev); err != nil {
		s.log.Error("journal append failed", zap.String("event", "order_created"), zap.Error(err))
	}
}

func (s *EscrowService) appendResolved(ctx context.Context, ev domain.OrderResolved) {
	if err := s.journal.OrderResolved(ctx, ev); err != nil {
		s.log.Error("journal append failed", zap.String("event", "order_resolved"), zap.Error(err))
	}
}

func (s *EscrowService) appendWithdrawn(ctx context.Context, ev domain.FeeWithdrawn) {
	if err := s.journal.FeeWithdrawn(ctx, ev); err != nil {
		s.log.Error("journal append failed", zap.String("event", "fee_withdrawn"), zap.Error(err))
	}
}
