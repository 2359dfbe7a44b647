package auth_test

import (
	"testing"

	"github.com/rjmacleod/sentinel/pkg/auth"
	"github.com/stretchr/testify/assert"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPasswordWithCost("hunter2!", 4)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "hunter2!", hash)
	assert.NoError(t, auth.ComparePassword(hash, "hunter2!"))
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestComparePassword_WrongPassword(t *testing.T) {
	hash, err := auth.HashPasswordWithCost("correct-horse", 4)
	assert.NoError(t, err)

	assert.Error(t, auth.ComparePassword(hash, "battery-staple"))
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	h1, err := auth.HashPasswordWithCost("same-input", 4)
	assert.NoError(t, err)
	h2, err := auth.HashPasswordWithCost("same-input", 4)
	assert.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
