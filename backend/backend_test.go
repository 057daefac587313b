package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_Complete(t *testing.T) {
	echo := Func(func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Content: "ECHO:" + req.Prompt}, nil
	})
	resp, err := echo.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ECHO:hi", resp.Content)
}

func TestUnavailableError_Matches(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&UnavailableError{Backend: "test", Err: cause})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBadResponse)
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "test", ue.Backend)
}

func TestResponseError_Matches(t *testing.T) {
	err := error(&ResponseError{Backend: "test", Detail: "empty completion"})
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "empty completion")
}

func TestUnavailableError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("invoke: %w", &UnavailableError{Backend: "x", Err: errors.New("boom")})
	assert.ErrorIs(t, err, ErrUnavailable)
}
