// Package payouts settles pending earnings into paid earnings.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dedpost/platform/internal/app/domain/payout"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/metrics"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

// ErrInvalidAmount is returned when a settlement amount is zero, negative,
// or not a finite number.
var ErrInvalidAmount = errors.New("payout amount must be a positive number")

// EligibleList is one page of accounts whose pending earnings meet the
// minimum payout threshold.
type EligibleList struct {
	Users        []user.User `json:"users"`
	Total        int64       `json:"total"`
	TotalPayable float64     `json:"total_payable"`
}

// Service implements payout settlement.
type Service struct {
	users storage.UserStore
	log   *logger.Logger
}

// NewService creates a payouts service.
func NewService(users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payouts")
	}
	return &Service{users: users, log: log}
}

// Approve settles amount from one account's pending earnings. The balance
// move is a single conditional update: either the full amount moves from
// pending to paid, or nothing changes.
func (s *Service) Approve(ctx context.Context, req payout.Request) (payout.Receipt, error) {
	if err := validateAmount(req.Amount); err != nil {
		metrics.RecordSettlement("invalid_amount", 0)
		return payout.Receipt{}, err
	}

	settled, err := s.users.SettlePayout(ctx, req.UserID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			metrics.RecordSettlement("not_found", 0)
		case errors.Is(err, storage.ErrInsufficientFunds):
			metrics.RecordSettlement("insufficient_funds", 0)
		default:
			metrics.RecordSettlement("error", 0)
		}
		return payout.Receipt{}, err
	}

	metrics.RecordSettlement("success", req.Amount)
	s.log.WithField("user_id", settled.ID).
		WithField("amount", req.Amount).
		Info("payout settled")

	return payout.Receipt{
		UserID:          settled.ID,
		Username:        settled.Username,
		Amount:          req.Amount,
		PendingEarnings: settled.PendingEarnings,
		PaidEarnings:    settled.PaidEarnings,
	}, nil
}

// BulkApprove settles a batch of payout requests. Each request succeeds or
// fails on its own; one account's failure never rolls back another's
// settlement. The summary reports both sides.
func (s *Service) BulkApprove(ctx context.Context, reqs []payout.Request) (payout.BulkResult, error) {
	if len(reqs) == 0 {
		return payout.BulkResult{}, fmt.Errorf("no payout requests given: %w", storage.ErrInvalidInput)
	}

	result := payout.BulkResult{
		Results:  make([]payout.Receipt, 0, len(reqs)),
		Failures: make([]payout.Failure, 0),
	}

	for _, req := range reqs {
		receipt, err := s.Approve(ctx, req)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, payout.Failure{
				UserID: req.UserID,
				Amount: req.Amount,
				Reason: failureReason(err),
			})
			continue
		}
		result.Successful++
		result.Results = append(result.Results, receipt)
	}
	result.TotalProcessed = len(reqs)

	s.log.WithField("successful", result.Successful).
		WithField("failed", result.Failed).
		Info("bulk payout completed")
	return result, nil
}

// ListEligible returns accounts whose pending earnings meet minAmount,
// largest balance first.
func (s *Service) ListEligible(ctx context.Context, minAmount float64, offset, limit int) (EligibleList, error) {
	if minAmount < 0 {
		return EligibleList{}, ErrInvalidAmount
	}

	users, total, totalPayable, err := s.users.ListPayable(ctx, minAmount, offset, limit)
	if err != nil {
		return EligibleList{}, fmt.Errorf("list payable accounts: %w", err)
	}
	return EligibleList{Users: users, Total: total, TotalPayable: totalPayable}, nil
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid amount"
	case errors.Is(err, storage.ErrNotFound):
		return "user not found"
	case errors.Is(err, storage.ErrInsufficientFunds):
		return "insufficient pending earnings"
	default:
		return err.Error()
	}
}
