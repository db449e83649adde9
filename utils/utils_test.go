package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          ValidationError("bad"),
		http.StatusNotFound:            NotFoundError("missing"),
		http.StatusConflict:            ConflictError("dates no longer available", nil),
		http.StatusServiceUnavailable:  TransientError("down", nil),
		http.StatusInternalServerError: errors.New("boom"),
	}
	for status, err := range cases {
		assert.Equal(t, status, HTTPStatus(err), err.Error())
	}
	wrapped := fmt.Errorf("outer: %w", NewAppError(KindMinimumStay, "too short", nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(wrapped))
	assert.Equal(t, "too short", MessageOf(wrapped, "fallback"))
	assert.Equal(t, "fallback", MessageOf(errors.New("x"), "fallback"))
}

func TestRetryRead(t *testing.T) {
	calls := 0
	err := RetryRead(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return TransientError("flaky", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryRead(context.Background(), 3, func() error {
		calls++
		return ValidationError("permanent")
	})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestRetryRead_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryRead(ctx, 5, func() error { return TransientError("down", nil) })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStayDates(t *testing.T) {
	in, out, err := ParseStayDates("2025-12-30", "2026-01-02")
	require.NoError(t, err)
	nights := Nights(in, out)
	require.Len(t, nights, 3)
	assert.Equal(t, "2026-01-01", FormatDate(nights[2]))
	assert.Equal(t, time.UTC, nights[0].Location())

	_, _, err = ParseStayDates("2025-02-30", "2025-03-02")
	assert.Equal(t, KindValidation, KindOf(err))
	_, _, err = ParseStayDates("2025-01-01", "2026-06-01")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(133550), ToMinorUnits(1335.5, "EUR"))
	assert.Equal(t, int64(1336), ToMinorUnits(1335.5, "jpy"))
	assert.Equal(t, 1335.5, FromMinorUnits(133550, "eur"))
	assert.Equal(t, "EUR", NormalizeCurrency(" "))
}
