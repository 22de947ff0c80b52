// Package loyalty implements the integration-API mutation handlers: customer
// upsert, point-earning transactions, and reward redemptions. Every mutation
// that touches a balance locks the customer row and applies the entity write
// and the point adjustment in one database transaction; events are emitted
// only after that transaction commits.
package loyalty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
	"github.com/perkhub/loyalty-gateway/internal/points"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/util"
)

// Emitter decouples the service from the webhook dispatcher. Emission is
// fire-and-forget; implementations must never fail the caller.
type Emitter interface {
	Emit(ctx context.Context, businessID int64, name model.EventName, data map[string]any)
}

type Service struct {
	db          *sqlx.DB
	customers   repository.CustomersRepository
	txns        repository.TransactionsRepository
	rewards     repository.RewardsRepository
	redemptions repository.RedemptionsRepository
	events      Emitter
}

func New(
	db *sqlx.DB,
	customersRepo repository.CustomersRepository,
	transactionsRepo repository.TransactionsRepository,
	rewardsRepo repository.RewardsRepository,
	redemptionsRepo repository.RedemptionsRepository,
	events Emitter,
) *Service {
	return &Service{
		db:          db,
		customers:   customersRepo,
		txns:        transactionsRepo,
		rewards:     rewardsRepo,
		redemptions: redemptionsRepo,
		events:      events,
	}
}

// CustomerRef addresses a customer by ID or email; exactly one must be set.
type CustomerRef struct {
	ID    string
	Email string
}

func (r CustomerRef) empty() bool { return r.ID == "" && r.Email == "" }

// ---- Customer upsert ----

type UpsertCustomerInput struct {
	Email string
	Name  string
	Phone *string
}

type UpsertCustomerResult struct {
	Customer model.Customer
	Created  bool
}

// UpsertCustomer creates or updates a customer keyed by (business, email).
// Safe to retry without an idempotency key: the same email always lands on
// the same row, and points are never touched on the update branch.
func (s *Service) UpsertCustomer(ctx context.Context, businessID int64, in UpsertCustomerInput) (*UpsertCustomerResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var out UpsertCustomerResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.customers.GetForUpdateByEmail(ctx, tx, businessID, email)
		if err != nil {
			return fmt.Errorf("lookup customer: %w", err)
		}

		if existing == nil {
			c := model.Customer{
				ID:         util.New(),
				BusinessID: businessID,
				Email:      email,
				Name:       in.Name,
				Phone:      in.Phone,
				Points:     0,
			}
			if err := s.customers.Insert(ctx, tx, c); err != nil {
				return fmt.Errorf("insert customer: %w", err)
			}
			out = UpsertCustomerResult{Customer: c, Created: true}
			return nil
		}

		if err := s.customers.UpdateProfile(ctx, tx, existing.ID, in.Name, in.Phone); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		existing.Name = in.Name
		if in.Phone != nil {
			existing.Phone = in.Phone
		}
		out = UpsertCustomerResult{Customer: *existing, Created: false}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Created {
		s.events.Emit(ctx, businessID, model.EventCustomerCreated, map[string]any{
			"customer_id": out.Customer.ID,
			"email":       out.Customer.Email,
			"name":        out.Customer.Name,
		})
	}
	return &out, nil
}

func (s *Service) GetCustomer(ctx context.Context, businessID int64, id string) (*model.Customer, error) {
	c, err := s.customers.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

// ---- Transactions ----

type CreateTransactionInput struct {
	Customer CustomerRef
	Amount   int64
	Date     *time.Time
}

type TransactionResult struct {
	Transaction   model.Transaction
	PointsAwarded int64
	NewBalance    int64
}

// CreateTransaction inserts the transaction row and increments the customer's
// balance by ForAmount(amount), atomically.
func (s *Service) CreateTransaction(ctx context.Context, businessID int64, in CreateTransactionInput) (*TransactionResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.Customer.empty() {
		return nil, ErrMissingCustomerRef
	}

	date := time.Now().UTC()
	if in.Date != nil {
		date = *in.Date
	}
	pts := points.ForAmount(in.Amount)

	var out TransactionResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.lockCustomer(ctx, tx, businessID, in.Customer)
		if err != nil {
			return err
		}

		t := model.Transaction{
			ID:         util.New(),
			BusinessID: businessID,
			CustomerID: c.ID,
			Amount:     in.Amount,
			Date:       date,
		}
		if err := s.txns.Insert(ctx, tx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := s.customers.AdjustPoints(ctx, tx, c.ID, pts); err != nil {
			return fmt.Errorf("award points: %w", err)
		}

		out = TransactionResult{Transaction: t, PointsAwarded: pts, NewBalance: c.Points + pts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, businessID, model.EventTransactionCreated, map[string]any{
		"transaction_id": out.Transaction.ID,
		"customer_id":    out.Transaction.CustomerID,
		"amount":         out.Transaction.Amount,
	})
	s.events.Emit(ctx, businessID, model.EventPointsAwarded, map[string]any{
		"transaction_id": out.Transaction.ID,
		"customer_id":    out.Transaction.CustomerID,
		"points":         out.PointsAwarded,
		"new_balance":    out.NewBalance,
	})
	return &out, nil
}

type UpdateTransactionResult struct {
	Transaction model.Transaction
	PointsDelta int64
	NewBalance  int64
}

// UpdateTransaction edits the amount and applies the signed points difference
// computed with the same function used at create time.
func (s *Service) UpdateTransaction(ctx context.Context, businessID int64, id string, amount int64) (*UpdateTransactionResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var out UpdateTransactionResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.txns.GetForUpdate(ctx, tx, businessID, id)
		if err != nil {
			return fmt.Errorf("lookup transaction: %w", err)
		}
		if t == nil {
			return ErrTransactionNotFound
		}

		c, err := s.customers.GetForUpdate(ctx, tx, businessID, t.CustomerID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if c == nil {
			return ErrCustomerNotFound
		}

		delta := points.UpdateDelta(t.Amount, amount)
		if err := s.txns.UpdateAmount(ctx, tx, t.ID, amount); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if delta != 0 {
			if err := s.customers.AdjustPoints(ctx, tx, c.ID, delta); err != nil {
				return fmt.Errorf("adjust points: %w", err)
			}
		}

		t.Amount = amount
		out = UpdateTransactionResult{Transaction: *t, PointsDelta: delta, NewBalance: c.Points + delta}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type DeleteTransactionResult struct {
	PointsReversed int64
	NewBalance     int64
}

// DeleteTransaction removes the row and reverses the award exactly.
func (s *Service) DeleteTransaction(ctx context.Context, businessID int64, id string) (*DeleteTransactionResult, error) {
	var out DeleteTransactionResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.txns.GetForUpdate(ctx, tx, businessID, id)
		if err != nil {
			return fmt.Errorf("lookup transaction: %w", err)
		}
		if t == nil {
			return ErrTransactionNotFound
		}

		c, err := s.customers.GetForUpdate(ctx, tx, businessID, t.CustomerID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if c == nil {
			return ErrCustomerNotFound
		}

		pts := points.ForAmount(t.Amount)
		if err := s.txns.Delete(ctx, tx, t.ID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if err := s.customers.AdjustPoints(ctx, tx, c.ID, -pts); err != nil {
			return fmt.Errorf("reverse points: %w", err)
		}

		out = DeleteTransactionResult{PointsReversed: pts, NewBalance: c.Points - pts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- Redemptions ----

type CreateRedemptionInput struct {
	Customer CustomerRef
	RewardID string
}

type RedemptionResult struct {
	Redemption     model.Redemption
	PointsDeducted int64
	NewBalance     int64
}

// CreateRedemption checks the balance and deducts it inside the same locked
// transaction, so concurrent redemptions cannot overspend. The reward's
// points_required is snapshotted onto the redemption row.
func (s *Service) CreateRedemption(ctx context.Context, businessID int64, in CreateRedemptionInput) (*RedemptionResult, error) {
	if in.Customer.empty() {
		return nil, ErrMissingCustomerRef
	}

	var out RedemptionResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		rw, err := s.rewards.GetByID(ctx, businessID, in.RewardID)
		if err != nil {
			return fmt.Errorf("lookup reward: %w", err)
		}
		if rw == nil {
			return ErrRewardNotFound
		}

		c, err := s.lockCustomer(ctx, tx, businessID, in.Customer)
		if err != nil {
			return err
		}

		if c.Points < rw.PointsRequired {
			return &InsufficientPointsError{Required: rw.PointsRequired, Available: c.Points}
		}

		rd := model.Redemption{
			ID:          util.New(),
			BusinessID:  businessID,
			CustomerID:  c.ID,
			RewardID:    rw.ID,
			PointsSpent: rw.PointsRequired,
			Date:        time.Now().UTC(),
		}
		if err := s.redemptions.Insert(ctx, tx, rd); err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		if err := s.customers.AdjustPoints(ctx, tx, c.ID, -rw.PointsRequired); err != nil {
			return fmt.Errorf("deduct points: %w", err)
		}

		out = RedemptionResult{
			Redemption:     rd,
			PointsDeducted: rw.PointsRequired,
			NewBalance:     c.Points - rw.PointsRequired,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, businessID, model.EventRedemptionCompleted, map[string]any{
		"redemption_id":   out.Redemption.ID,
		"customer_id":     out.Redemption.CustomerID,
		"reward_id":       out.Redemption.RewardID,
		"points_deducted": out.PointsDeducted,
		"new_balance":     out.NewBalance,
	})
	return &out, nil
}

type DeleteRedemptionResult struct {
	PointsRestored int64
	NewBalance     int64
}

// DeleteRedemption restores the snapshotted points_spent, not the reward's
// current price, so the reversal is exact even after a reward edit.
func (s *Service) DeleteRedemption(ctx context.Context, businessID int64, id string) (*DeleteRedemptionResult, error) {
	var out DeleteRedemptionResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		rd, err := s.redemptions.GetForUpdate(ctx, tx, businessID, id)
		if err != nil {
			return fmt.Errorf("lookup redemption: %w", err)
		}
		if rd == nil {
			return ErrRedemptionNotFound
		}

		c, err := s.customers.GetForUpdate(ctx, tx, businessID, rd.CustomerID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if c == nil {
			return ErrCustomerNotFound
		}

		if err := s.redemptions.Delete(ctx, tx, rd.ID); err != nil {
			return fmt.Errorf("delete redemption: %w", err)
		}
		if err := s.customers.AdjustPoints(ctx, tx, c.ID, rd.PointsSpent); err != nil {
			return fmt.Errorf("restore points: %w", err)
		}

		out = DeleteRedemptionResult{PointsRestored: rd.PointsSpent, NewBalance: c.Points + rd.PointsSpent}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- helpers ----

func (s *Service) lockCustomer(ctx context.Context, tx *sqlx.Tx, businessID int64, ref CustomerRef) (*model.Customer, error) {
	var (
		c   *model.Customer
		err error
	)
	if ref.ID != "" {
		c, err = s.customers.GetForUpdate(ctx, tx, businessID, ref.ID)
	} else {
		c, err = s.customers.GetForUpdateByEmail(ctx, tx, businessID, strings.ToLower(strings.TrimSpace(ref.Email)))
	}
	if err != nil {
		return nil, fmt.Errorf("lock customer: %w", err)
	}
	if c == nil {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

func (s *Service) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
