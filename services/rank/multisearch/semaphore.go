// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package multisearch

import "context"

// Semaphore bounds how many queries run at once. It is a counting
// semaphore over a buffered channel.
//
// Thread Safety: Safe for concurrent use.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore admitting capacity holders at a
// time. A capacity below one is clamped to one.
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire takes a slot, blocking until one frees up or ctx ends.
//
// Outputs:
//   - error: ctx.Err() when the wait was cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by a successful Acquire or TryAcquire.
// Releasing without holding a slot is a caller bug and panics.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
		panic("multisearch: semaphore released without acquire")
	}
}

// Available returns how many slots are currently free.
func (s *Semaphore) Available() int {
	return cap(s.slots) - len(s.slots)
}
