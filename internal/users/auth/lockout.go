// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// NextLockout maps a failure count, taken after incrementing for the current
// failure, to the lockout it triggers. The boolean is false below the first tier.
func NextLockout(failedCount int) (time.Duration, bool) {
	switch {
	case failedCount >= lockoutTierThreeThreshold:
		return lockoutTierThreeDuration, true
	case failedCount >= lockoutTierTwoThreshold:
		return lockoutTierTwoDuration, true
	case failedCount >= lockoutTierOneThreshold:
		return lockoutTierOneDuration, true
	default:
		return 0, false
	}
}

// nextFailureState applies one more failure to the stored counter.
func nextFailureState(currentCount int, now time.Time) FailureState {
	state := FailureState{FailedCount: currentCount + 1}

	if duration, ok := NextLockout(state.FailedCount); ok {
		until := now.Add(duration)
		state.LockoutUntil = &until
	}

	return state
}
