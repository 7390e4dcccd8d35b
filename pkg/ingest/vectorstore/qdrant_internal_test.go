// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointUUIDFor_PassesThroughValidUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, pointUUIDFor(id))
}

func TestPointUUIDFor_RehashesNonUUIDDeterministically(t *testing.T) {
	hash := "sha256:abcdef0123456789"
	first := pointUUIDFor(hash)
	second := pointUUIDFor(hash)
	assert.Equal(t, first, second)

	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, hash, first)
}

func TestPointUUIDFor_DifferentInputsYieldDifferentIDs(t *testing.T) {
	a := pointUUIDFor("chunk-hash-a")
	b := pointUUIDFor("chunk-hash-b")
	assert.NotEqual(t, a, b)
}
