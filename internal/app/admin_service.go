package app

import (
	"context"
)

// SweepRunner runs one named sweep.
type SweepRunner interface {
	Run(ctx context.Context, name string) (*SweepReport, error)
}

// AdminService exposes operator actions to the staff Telegram bot.
type AdminService struct {
	sweeps          SweepRunner
	adminTelegramID int64
}

func NewAdminService(sr SweepRunner, adminID int64) *AdminService {
	return &AdminService{
		sweeps:          sr,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether the Telegram user is the configured admin.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// RunSweep runs a sweep now on behalf of the admin.
func (s *AdminService) RunSweep(ctx context.Context, performingAdminID int64, name string) (*SweepReport, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.sweeps.Run(ctx, name)
}
