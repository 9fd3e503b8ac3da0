// Copyright 2025 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrypolicy

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Budget bounds retries of one remote operation. Delays grow geometrically
// from InitialDelay by Growth per attempt, capped at MaxDelay. No jitter:
// delay growth is deterministic.
type Budget struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Growth       float64
}

// Upload tolerates long transfers over constrained links.
var Upload = Budget{
	MaxAttempts:  8,
	InitialDelay: time.Second,
	MaxDelay:     2 * time.Minute,
	Growth:       2,
}

// Meta covers existence checks, storage class mutation, and small object
// writes.
var Meta = Budget{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Growth:       2,
}

var Download = Budget{
	MaxAttempts:  5,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	Growth:       2,
}

var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do invokes op until it succeeds or the budget is exhausted, at which
// point the last error is returned. Cancellation is not retried.
func (b Budget) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	lgr := zap.S()
	delay := b.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= b.MaxAttempts {
			return err
		}
		lgr.Warnw("retrying_operation", "op", name, "attempt", attempt, "delay", delay, "err", err)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay = time.Duration(float64(delay) * b.Growth)
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}
