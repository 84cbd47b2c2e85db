package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrNotFound, "Archive not found")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrConflict)
	require.Equal(t, "resource not found", ErrNotFound.Message)

	wrapped := fmt.Errorf("lookup: %w", err)
	require.Equal(t, http.StatusNotFound, FromError(wrapped).Status)
}

func TestStoreKeepsCauseServerSide(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Store(cause, "")
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrStore.Message, err.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	require.Nil(t, FromError(nil))
	appErr := FromError(errors.New("boom"))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
}
