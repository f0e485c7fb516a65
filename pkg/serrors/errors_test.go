package serrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	a := NewError("AJAX_TRANSPORT", "transport failure", "")
	b := NewError("AJAX_TRANSPORT", "other wording", "")
	c := NewError("AJAX_STATUS", "status failure", "")

	wrapped := fmt.Errorf("get fragment: %w", a)

	assert.ErrorIs(t, wrapped, b)
	assert.NotErrorIs(t, wrapped, c)
	assert.Equal(t, "AJAX_TRANSPORT", CodeOf(wrapped))
	assert.Empty(t, CodeOf(errors.New("plain")))
}
