package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code int
		want common.FailureClass
	}{
		{"rate limited", http.StatusTooManyRequests, common.ClassTransient},
		{"server error", http.StatusInternalServerError, common.ClassTransient},
		{"bad gateway", http.StatusBadGateway, common.ClassTransient},
		{"forbidden", http.StatusForbidden, common.ClassPermanent},
		{"unauthorized", http.StatusUnauthorized, common.ClassPermanent},
		{"not found", http.StatusNotFound, common.ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(fmt.Errorf("request failed: %w",
				&googleapi.Error{Code: tt.code, Message: tt.name}))
			assert.Equal(t, tt.want, common.Classify(err))
		})
	}

	t.Run("network error is transient", func(t *testing.T) {
		err := classify(errors.New("connection reset"))
		assert.Equal(t, common.ClassTransient, common.Classify(err))
	})

	t.Run("not found wraps ErrNotFound", func(t *testing.T) {
		err := classify(fmt.Errorf("download: %w",
			&googleapi.Error{Code: http.StatusNotFound}))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestRandomState(t *testing.T) {
	first, err := randomState()
	assert.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := randomState()
	assert.NoError(t, err)
	assert.NotEqual(t, first, second, "state must be unique per flow")
}

func TestMockStore_ListNewestFirst(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	first, err := mock.Put(ctx, "a.tgob", []byte("one"))
	assert.NoError(t, err)
	second, err := mock.Put(ctx, "b.tgob", []byte("two"))
	assert.NoError(t, err)

	handles, err := mock.ListHandles(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID},
		[]string{handles[0].ID, handles[1].ID})

	data, err := mock.Get(ctx, first)
	assert.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
}
