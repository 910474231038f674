package notify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailure(t *testing.T) {
	detail := "file is not a spreadsheet"
	tests := []struct {
		name    string
		err     error
		shown   bool
		message string
	}{
		{name: "api error with detail", err: &sdk.APIError{Status: 422, Detail: &detail}, shown: true, message: "Upload failed (422): file is not a spreadsheet"},
		{name: "api error without detail", err: &sdk.APIError{Status: 500}, shown: true, message: "Upload failed (500)"},
		{name: "wrapped api error", err: fmt.Errorf("import: %w", &sdk.APIError{Status: 500}), shown: true, message: "Upload failed (500)"},
		{name: "plain error", err: errors.New("disk full"), shown: true, message: "Upload failed: disk full"},
		{name: "aborted", err: fmt.Errorf("upload: %w", sdk.ErrAborted), shown: false},
		{name: "network", err: &sdk.NetworkError{Err: context.DeadlineExceeded}, shown: false},
		{name: "nil", err: nil, shown: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center := notify.NewCenter()
			id := center.Failure("Upload", tt.err)

			if !tt.shown {
				assert.Empty(t, id)
				assert.Empty(t, center.Active())
				return
			}
			active := center.Active()
			require.Len(t, active, 1)
			assert.Equal(t, id, active[0].ID)
			assert.Equal(t, tt.message, active[0].Message)
			assert.Equal(t, notify.LevelError, active[0].Level)
		})
	}
}

func TestReauthenticateBannerIsSingleAndPersistent(t *testing.T) {
	center := notify.NewCenter()

	center.Reauthenticate()
	id := center.Reauthenticate()

	active := center.Active()
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].ID)
	assert.False(t, center.Dismiss(id))

	center.Clear(notify.KeyReauthenticate)
	assert.Empty(t, center.Active())
}

func TestSubscribe(t *testing.T) {
	center := notify.NewCenter()
	var seen []string
	cancel := center.Subscribe(func(n notify.Notice) { seen = append(seen, n.Message) })

	center.Push(notify.Notice{Message: "first"})
	cancel()
	center.Push(notify.Notice{Message: "second"})

	assert.Equal(t, []string{"first"}, seen)
	assert.Len(t, center.Active(), 2)
}
