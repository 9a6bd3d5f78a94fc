package snapshot

import (
	"fmt"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
)

// payloadMigration transforms a decoded payload from one schema version to
// the next. Decoding an old archive runs the chain forward until the payload
// has the current shape.
type payloadMigration struct {
	apply       func(*payload) error
	description string
	from        int
}

var payloadMigrations = []payloadMigration{
	{
		from:        1,
		description: "introduce tags",
		apply: func(p *payload) error {
			// v1 archives predate tags entirely.
			p.Tags = []string{}
			for i := range p.Transactions {
				p.Transactions[i].Tags = nil
			}
			return nil
		},
	},
}

// migratePayload upgrades p from the given archive version to the current
// schema.
func migratePayload(p *payload, version int) error {
	for _, m := range payloadMigrations {
		if m.from < version {
			continue
		}
		if err := m.apply(p); err != nil {
			return common.NewDecodeError(common.DecodeCorrupt,
				fmt.Errorf("migration from v%d (%s) failed: %w", m.from, m.description, err))
		}
	}
	return nil
}
