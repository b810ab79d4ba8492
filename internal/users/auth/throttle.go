// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"
)

// Throttle is the per-source-IP login limiter.
//
// It counts persisted attempts over a trailing [ThrottleWindow] rather than a
// fixed bucket, so the limit holds across every API replica.
type Throttle struct {
	attempts AttemptRepository
	now      func() time.Time
}

// NewThrottle constructs a [Throttle] over the attempt log.
func NewThrottle(attempts AttemptRepository, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{attempts: attempts, now: now}
}

// RecordAttempt appends the attempt unconditionally, throttled or not.
func (throttle *Throttle) RecordAttempt(context context.Context, attempt LoginAttempt) error {
	if attempt.AttemptAt.IsZero() {
		attempt.AttemptAt = throttle.now()
	}

	if err := throttle.attempts.Append(context, attempt); err != nil {
		return fmt.Errorf("auth_throttle_record_failed: %w", err)
	}
	return nil
}

/*
Allow reports whether ip is still under the limit.

It must run after [Throttle.RecordAttempt] for the current attempt: the
just-recorded row is part of the count, so the first [ThrottleMaxAttempts]
attempts in the window pass and the next one is refused.
*/
func (throttle *Throttle) Allow(context context.Context, ip string) (bool, error) {
	count, err := throttle.attempts.CountSince(context, ip, throttle.now().Add(-ThrottleWindow))
	if err != nil {
		return false, fmt.Errorf("auth_throttle_count_failed: %w", err)
	}

	return count <= ThrottleMaxAttempts, nil
}
