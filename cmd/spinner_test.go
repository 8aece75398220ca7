package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSpinnerReturnsWorkResult(t *testing.T) {
	var out bytes.Buffer

	got, err := runSpinner(context.Background(), &out, "Working...", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.NotContains(t, out.String(), "Working...")
}

func TestRunSpinnerReturnsWorkError(t *testing.T) {
	boom := errors.New("boom")

	_, err := runSpinner(context.Background(), &bytes.Buffer{}, "Working...", func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSpinnerModelRevealsOnlyWhileWorking(t *testing.T) {
	m := newSpinnerModel[int]("Resolving session...", nil)
	assert.Empty(t, m.View())

	next, _ := m.Update(revealSpinnerMsg{})
	m = next.(spinnerModel[int])
	assert.Contains(t, m.View(), "Resolving session...")

	next, _ = m.Update(workDoneMsg[int]{value: 7})
	m = next.(spinnerModel[int])
	assert.Empty(t, m.View())
	assert.Equal(t, 7, m.value)
}
