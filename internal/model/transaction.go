package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Transaction represents a single ledger entry. Amount is a positive
// magnitude in minor currency units; the referenced category's kind
// disambiguates income from expense.
type Transaction struct {
	Date       time.Time
	CreatedAt  time.Time
	Note       string
	Tags       []string
	Amount     int64
	CategoryID int64
	ID         int64
}

// NormalizeTags sorts the transaction's tag set and removes duplicates and
// empty entries.
func (t *Transaction) NormalizeTags() {
	seen := make(map[string]bool, len(t.Tags))
	tags := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	t.Tags = tags
}

// IdentityKey builds the content-based identity used to recognize the same
// transaction across independent stores: date, amount, category (by name and
// kind), and the tag set. Numeric ids collide meaninglessly between stores,
// so deduplication never looks at them. Note text is deliberately excluded.
func (t *Transaction) IdentityKey(category CategoryKey) string {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	sort.Strings(tags)

	data := fmt.Sprintf("%s:%d:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		category.Name,
		category.Kind,
		strings.Join(tags, "\x1f"))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
