package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"sorted and deduped", []string{"b", "a", "b"}, []string{"a", "b"}},
		{"whitespace trimmed", []string{" food ", "food"}, []string{"food"}},
		{"empties dropped", []string{"", "  ", "x"}, []string{"x"}},
		{"nil stays empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := Transaction{Tags: tt.in}
			txn.NormalizeTags()
			assert.Equal(t, tt.want, txn.Tags)
		})
	}
}

func TestIdentityKey(t *testing.T) {
	key := CategoryKey{Name: "Grocery", Kind: KindExpense}
	base := Transaction{
		Date:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount: 1250,
		Tags:   []string{"weekly", "food"},
	}

	t.Run("tag order does not matter", func(t *testing.T) {
		other := base
		other.Tags = []string{"food", "weekly"}
		assert.Equal(t, base.IdentityKey(key), other.IdentityKey(key))
	})

	t.Run("ids and notes do not matter", func(t *testing.T) {
		other := base
		other.ID = 999
		other.Note = "completely different note"
		other.CreatedAt = time.Now()
		assert.Equal(t, base.IdentityKey(key), other.IdentityKey(key))
	})

	t.Run("amount matters", func(t *testing.T) {
		other := base
		other.Amount = 1251
		assert.NotEqual(t, base.IdentityKey(key), other.IdentityKey(key))
	})

	t.Run("date matters", func(t *testing.T) {
		other := base
		other.Date = base.Date.AddDate(0, 0, 1)
		assert.NotEqual(t, base.IdentityKey(key), other.IdentityKey(key))
	})

	t.Run("category kind matters", func(t *testing.T) {
		income := CategoryKey{Name: "Grocery", Kind: KindIncome}
		assert.NotEqual(t, base.IdentityKey(key), base.IdentityKey(income))
	})

	t.Run("tag set matters", func(t *testing.T) {
		other := base
		other.Tags = []string{"weekly"}
		assert.NotEqual(t, base.IdentityKey(key), other.IdentityKey(key))
	})
}

func TestCategoryKind_Valid(t *testing.T) {
	assert.True(t, KindIncome.Valid())
	assert.True(t, KindExpense.Valid())
	assert.False(t, CategoryKind("transfer").Valid())
	assert.False(t, CategoryKind("").Valid())
}

func TestCategory_IsSystem(t *testing.T) {
	system := Category{Name: NoCategoryName, Origin: OriginSystem}
	user := Category{Name: "Grocery", Origin: OriginUser}
	assert.True(t, system.IsSystem())
	assert.False(t, user.IsSystem())
}
