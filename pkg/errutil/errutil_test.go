package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConstructorsWrapCause(t *testing.T) {
	cause := errors.New("record not found")
	err := NotFound("profile not found", cause)

	require.ErrorIs(t, err, cause)
	require.True(t, Is(err, StatusNotFound))
	require.Equal(t, http.StatusNotFound, StatusOf(err).HTTPStatus())

	wrapped := fmt.Errorf("load: %w", err)
	require.Equal(t, StatusNotFound, StatusOf(wrapped))
}

func TestStatusOfPlainError(t *testing.T) {
	require.Equal(t, StatusInternal, StatusOf(errors.New("boom")))
	require.False(t, Is(nil, StatusInternal))
}

func TestJSONOmitsCause(t *testing.T) {
	err := UnprocessableEntity("insufficient balance", errors.New("balance 10 < 50"),
		WithDetails(Detail{Field: "amount", Message: "exceeds balance"}))

	var be BaseError
	require.True(t, errors.As(err, &be))

	body := be.JSON()["error"].(map[string]any)
	require.Equal(t, StatusUnprocessableEntity, body["code"])
	require.Equal(t, "insufficient balance", body["message"])
	require.Len(t, body["details"], 1)
	require.Equal(t, http.StatusUnprocessableEntity, be.Code.HTTPStatus())
}

func TestToGRPCError(t *testing.T) {
	require.NoError(t, ToGRPCError(nil))

	st, _ := status.FromError(ToGRPCError(Conflict("cycle already running", nil)))
	require.Equal(t, codes.AlreadyExists, st.Code())
	require.Equal(t, "cycle already running", st.Message())

	st, _ = status.FromError(ToGRPCError(context.Canceled))
	require.Equal(t, codes.Canceled, st.Code())

	st, _ = status.FromError(ToGRPCError(errors.New("secret dsn")))
	require.Equal(t, codes.Internal, st.Code())
	require.NotContains(t, st.Message(), "dsn")
}
