package maintenance

import (
	"context"
	"fmt"
)

// PurgeExpired deletes expired checkout idempotency keys and OTP codes
func (s *Service) PurgeExpired(ctx context.Context) (*Report, error) {
	report := newReport(JobPurgeExpired)
	now := s.now()

	keys, err := s.keys.DeleteExpired(ctx, now)
	if err != nil {
		return report, fmt.Errorf("purge idempotency keys: %w", err)
	}
	otps, err := s.otps.DeleteExpired(ctx, now)
	if err != nil {
		return report, fmt.Errorf("purge otp codes: %w", err)
	}
	report.Processed = int(keys + otps)
	report.Updated = report.Processed
	return report, nil
}
