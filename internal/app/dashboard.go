package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsecure/portal-core/pkg/domain"
)

// RecentTransactionLimit caps the dashboard's transaction list.
const RecentTransactionLimit = 10

// CustomerDashboard builds the customer's home snapshot. Only the profile is
// required; every other read that fails is logged and left empty.
func (s *Service) CustomerDashboard(ctx context.Context, userID uuid.UUID) (*domain.CustomerDashboard, error) {
	profile, err := s.repo.GetCustomerProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer profile: %w", err)
	}

	dash := &domain.CustomerDashboard{
		Profile:            *profile,
		TotalBalance:       decimal.Zero,
		Accounts:           []domain.Account{},
		RecentTransactions: []domain.Transaction{},
	}
	log := s.log.WithField("user_id", userID)

	if accounts, err := s.repo.ListAccountsByCustomer(ctx, profile.ID); err != nil {
		log.WithError(err).Warn("dashboard: accounts unavailable")
	} else {
		if accounts != nil {
			dash.Accounts = accounts
		}
		dash.TotalAccounts = len(accounts)
		for _, account := range accounts {
			if account.Status == domain.AccountActive {
				dash.TotalBalance = dash.TotalBalance.Add(account.Balance)
			}
		}
	}

	if loans, err := s.repo.ListLoansByCustomer(ctx, profile.ID); err != nil {
		log.WithError(err).Warn("dashboard: loans unavailable")
	} else {
		for _, loan := range loans {
			if loan.Status == domain.LoanActive || loan.Status == domain.LoanDisbursed {
				dash.ActiveLoans++
			}
		}
	}

	if cards, err := s.repo.ListCardsByCustomer(ctx, profile.ID); err != nil {
		log.WithError(err).Warn("dashboard: cards unavailable")
	} else {
		for _, card := range cards {
			if card.Status == domain.CardActive {
				dash.ActiveCards++
			}
		}
	}

	if unread, err := s.repo.CountUnreadNotifications(ctx, userID); err != nil {
		log.WithError(err).Warn("dashboard: notifications unavailable")
	} else {
		dash.UnreadNotifications = unread
	}

	if recent, err := s.repo.ListRecentTransactionsByCustomer(ctx, profile.ID, RecentTransactionLimit); err != nil {
		log.WithError(err).Warn("dashboard: recent transactions unavailable")
	} else if recent != nil {
		if len(recent) > RecentTransactionLimit {
			recent = recent[:RecentTransactionLimit]
		}
		dash.RecentTransactions = recent
	}

	return dash, nil
}

// EmployeeDashboard returns the staff work-queue counters. Failed counters read as zero.
func (s *Service) EmployeeDashboard(ctx context.Context) (*domain.EmployeeDashboard, error) {
	dash := &domain.EmployeeDashboard{}

	if n, err := s.repo.CountCustomers(ctx); err != nil {
		s.log.WithError(err).Warn("dashboard: customer count unavailable")
	} else {
		dash.TotalCustomers = n
	}
	if n, err := s.repo.CountPendingKycDocuments(ctx); err != nil {
		s.log.WithError(err).Warn("dashboard: pending kyc count unavailable")
	} else {
		dash.PendingKyc = n
	}
	if n, err := s.repo.CountLoansByStatus(ctx, domain.LoanApplied, domain.LoanUnderReview); err != nil {
		s.log.WithError(err).Warn("dashboard: pending loan count unavailable")
	} else {
		dash.PendingLoans = n
	}
	if n, err := s.repo.CountLoansByStatus(ctx, domain.LoanActive, domain.LoanDisbursed); err != nil {
		s.log.WithError(err).Warn("dashboard: active loan count unavailable")
	} else {
		dash.ActiveLoans = n
	}
	return dash, nil
}
