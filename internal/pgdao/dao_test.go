// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

package pgdao

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNameLowercasesAndStripsPunctuation(t *testing.T) {
	assert.Equal(t, "account_events", tableName("Account"))
	assert.Equal(t, "bankaccount_events", tableName("Bank-Account"))
}

func TestPgIdentDropsEverythingButAlnumAndUnderscore(t *testing.T) {
	assert.Equal(t, "abc_123", pgIdent("ABC_123"))
	assert.Equal(t, "droptable", pgIdent("drop;table--"))
}

func TestCountBucketsMayChangeIsFalseForEventSourcedDomain(t *testing.T) {
	d := New(nil)
	assert.False(t, d.CountBucketsMayChange())
}
