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

package traceparent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnersdk/journeycore/internal/traceparent"
)

func TestNewMatchesW3CShape(t *testing.T) {
	tp, err := traceparent.New()
	require.NoError(t, err)
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, tp)
}

func TestNewIsNotConstant(t *testing.T) {
	a, err := traceparent.New()
	require.NoError(t, err)
	b, err := traceparent.New()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
