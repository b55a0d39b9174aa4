// Copyright 2025 Tom Barlow
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

package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		idemKey    bool
		wantCode   journeyerrors.Code
		recoverable bool
	}{
		{"unauthorized", 401, false, journeyerrors.CodeAuthExpired, false},
		{"forbidden", 403, false, journeyerrors.CodeAuthExpired, false},
		{"request timeout", 408, false, journeyerrors.CodeNetTimeout, true},
		{"conflict with idempotency key", 409, true, journeyerrors.CodeIdempotentReplay, false},
		{"conflict without idempotency key", 409, false, journeyerrors.CodeUnknown, false},
		{"bad request", 400, false, journeyerrors.CodeValidationFail, false},
		{"unprocessable", 422, false, journeyerrors.CodeValidationFail, false},
		{"too many requests", 429, false, journeyerrors.CodeRateLimited, true},
		{"server error", 500, false, journeyerrors.CodeUnknown, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := journeyerrors.MapStatus(tc.status, tc.idemKey)
			assert.Equal(t, tc.wantCode, got)
			assert.Equal(t, tc.recoverable, got.Recoverable())
		})
	}
}

func TestValidationFailedErrorMessage(t *testing.T) {
	err := &journeyerrors.ValidationFailedError{Reason: `startStep: step "x" not found`}
	assert.Contains(t, err.Error(), "startStep")
	assert.False(t, err.IsRetryable())
}

func TestRetryLimitExceededUnwrap(t *testing.T) {
	cause := &journeyerrors.HttpError{Status: 500, Mapped: journeyerrors.CodeUnknown, Message: "boom"}
	err := &journeyerrors.RetryLimitExceededError{Attempts: 3, LastErr: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "3 attempts")
}
