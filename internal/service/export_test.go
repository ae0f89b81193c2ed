package service

import "context"

// Sweep exposes the workspace sweeper to tests without waiting on the
// cron schedule.
func (s *Supervisor) Sweep(ctx context.Context) {
	s.sweep(ctx)
}
