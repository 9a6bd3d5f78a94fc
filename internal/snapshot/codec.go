// Package snapshot implements the encrypted ledger archive codec.
//
// Archive layout:
//
//	magic (4) | schema version uint32 BE | created unix int64 BE |
//	argon2 salt (16) | GCM nonce (12) | AES-256-GCM ciphertext
//
// The fixed-size header is bound to the ciphertext as additional
// authenticated data, so any header tamper fails the open. The plaintext is
// deterministic: identical ledgers serialize to identical bytes before
// encryption. The ciphertext is not, since a fresh salt and nonce are drawn
// per encode.
package snapshot

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

// SchemaVersion is the current archive schema version. Archives carrying a
// newer version are rejected, never best-effort parsed.
const SchemaVersion = 2

const (
	magicLen  = 4
	saltLen   = 16
	nonceLen  = 12
	headerLen = magicLen + 4 + 8 + saltLen + nonceLen
)

var magic = []byte("TGLB")

// payload is the serialized ledger content. Field order is fixed and every
// slice is sorted before encoding, so identical stores produce byte-identical
// plaintext.
type payload struct {
	Categories   []payloadCategory    `json:"categories"`
	Tags         []string             `json:"tags"`
	Transactions []payloadTransaction `json:"transactions"`
}

type payloadCategory struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
	ID     int64  `json:"id"`
}

type payloadTransaction struct {
	Date      string   `json:"date"`
	Note      string   `json:"note,omitempty"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags,omitempty"`
	Amount    int64    `json:"amount"`
	Category  int64    `json:"category_id"`
	ID        int64    `json:"id"`
}

// Encode serializes and encrypts a snapshot with a raw 32-byte key. The
// header salt is still written so passphrase- and key-file-encrypted
// archives share one layout, but it is unused for raw keys.
func Encode(snap *model.Snapshot, key Key) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return encode(snap, key, salt)
}

// EncodeWithPassphrase derives an encryption key from the passphrase and
// encrypts the snapshot with it.
func EncodeWithPassphrase(snap *model.Snapshot, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return encode(snap, DeriveKey(passphrase, salt), salt)
}

func encode(snap *model.Snapshot, key Key, salt []byte) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	plaintext, err := marshalPayload(snap)
	if err != nil {
		return nil, err
	}

	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := make([]byte, 0, headerLen)
	header = append(header, magic...)
	header = binary.BigEndian.AppendUint32(header, SchemaVersion)
	header = binary.BigEndian.AppendUint64(header, uint64(created.Unix()))
	header = append(header, salt...)
	header = append(header, nonce...)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, header)
	return append(header, sealed...), nil
}

// Decode authenticates, decrypts, migrates, and validates an archive using
// a raw 32-byte key. It returns either a fully valid snapshot or a
// DecodeError; a snapshot is never partially populated.
func Decode(data []byte, key Key) (*model.Snapshot, error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return decode(data, key, header)
}

// DecodeWithPassphrase derives the key from the passphrase using the salt
// carried in the archive header, then decodes.
func DecodeWithPassphrase(data []byte, passphrase string) (*model.Snapshot, error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return decode(data, DeriveKey(passphrase, header.salt), header)
}

type archiveHeader struct {
	created time.Time
	salt    []byte
	nonce   []byte
	version int
}

func parseHeader(data []byte) (*archiveHeader, error) {
	if len(data) < headerLen {
		return nil, common.NewDecodeError(common.DecodeCorrupt, fmt.Errorf("archive truncated: %d bytes", len(data)))
	}
	if !bytes.Equal(data[:magicLen], magic) {
		return nil, common.NewDecodeError(common.DecodeCorrupt, fmt.Errorf("bad magic bytes"))
	}

	version := int(binary.BigEndian.Uint32(data[magicLen : magicLen+4]))
	if version < 1 || version > SchemaVersion {
		return nil, common.NewDecodeError(common.DecodeUnsupportedVersion,
			fmt.Errorf("archive version %d, this build understands up to %d", version, SchemaVersion))
	}

	created := int64(binary.BigEndian.Uint64(data[magicLen+4 : magicLen+12]))
	saltStart := magicLen + 12

	return &archiveHeader{
		version: version,
		created: time.Unix(created, 0).UTC(),
		salt:    data[saltStart : saltStart+saltLen],
		nonce:   data[saltStart+saltLen : headerLen],
	}, nil
}

func decode(data []byte, key Key, header *archiveHeader) (*model.Snapshot, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, header.nonce, data[headerLen:], data[:headerLen])
	if err != nil {
		return nil, common.NewDecodeError(common.DecodeBadKey, err)
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, common.NewDecodeError(common.DecodeCorrupt, err)
	}

	if err := migratePayload(&p, header.version); err != nil {
		return nil, err
	}

	snap, err := buildSnapshot(&p, header)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// marshalPayload produces the deterministic plaintext for a snapshot.
func marshalPayload(snap *model.Snapshot) ([]byte, error) {
	p := payload{
		Categories:   make([]payloadCategory, 0, len(snap.Categories)),
		Tags:         make([]string, 0, len(snap.Tags)),
		Transactions: make([]payloadTransaction, 0, len(snap.Transactions)),
	}

	for _, cat := range snap.Categories {
		p.Categories = append(p.Categories, payloadCategory{
			ID:     cat.ID,
			Name:   cat.Name,
			Kind:   string(cat.Kind),
			Origin: string(cat.Origin),
		})
	}
	sort.Slice(p.Categories, func(i, j int) bool {
		a, b := p.Categories[i], p.Categories[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})

	for _, tag := range snap.Tags {
		p.Tags = append(p.Tags, tag.Name)
	}
	sort.Strings(p.Tags)

	for _, txn := range snap.Transactions {
		tags := make([]string, len(txn.Tags))
		copy(tags, txn.Tags)
		sort.Strings(tags)
		p.Transactions = append(p.Transactions, payloadTransaction{
			ID:        txn.ID,
			Date:      txn.Date.Format("2006-01-02"),
			Amount:    txn.Amount,
			Category:  txn.CategoryID,
			Tags:      tags,
			Note:      txn.Note,
			CreatedAt: txn.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(p.Transactions, func(i, j int) bool {
		a, b := p.Transactions[i], p.Transactions[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// buildSnapshot converts a migrated payload into the in-memory snapshot,
// validating referential integrity on the way. A transaction pointing at a
// category the archive does not contain is invalid content, never silently
// dropped.
func buildSnapshot(p *payload, header *archiveHeader) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		CreatedAt:     header.created,
		FormatVersion: header.version,
		Categories:    make([]model.Category, 0, len(p.Categories)),
		Tags:          make([]model.Tag, 0, len(p.Tags)),
		Transactions:  make([]model.Transaction, 0, len(p.Transactions)),
	}

	catByID := make(map[int64]bool, len(p.Categories))
	seenKeys := make(map[model.CategoryKey]bool, len(p.Categories))
	for _, cat := range p.Categories {
		kind := model.CategoryKind(cat.Kind)
		if !kind.Valid() {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("category %q has unknown kind %q", cat.Name, cat.Kind))
		}
		key := model.CategoryKey{Name: cat.Name, Kind: kind}
		if seenKeys[key] {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("duplicate category %q (%s)", cat.Name, cat.Kind))
		}
		seenKeys[key] = true
		catByID[cat.ID] = true

		origin := model.CategoryOrigin(cat.Origin)
		if origin != model.OriginSystem && origin != model.OriginUser {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("category %q has unknown origin %q", cat.Name, cat.Origin))
		}

		snap.Categories = append(snap.Categories, model.Category{
			ID:     cat.ID,
			Name:   cat.Name,
			Kind:   kind,
			Origin: origin,
		})
	}

	tagNames := make(map[string]bool, len(p.Tags))
	for _, name := range p.Tags {
		if tagNames[name] {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("duplicate tag %q", name))
		}
		tagNames[name] = true
		snap.Tags = append(snap.Tags, model.Tag{Name: name})
	}

	for _, txn := range p.Transactions {
		if !catByID[txn.Category] {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("transaction %d references missing category %d", txn.ID, txn.Category))
		}
		if txn.Amount < 0 {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("transaction %d has negative amount %d", txn.ID, txn.Amount))
		}
		for _, tag := range txn.Tags {
			if !tagNames[tag] {
				return nil, common.NewDecodeError(common.DecodeInvalidContent,
					fmt.Errorf("transaction %d references missing tag %q", txn.ID, tag))
			}
		}

		date, err := time.ParseInLocation("2006-01-02", txn.Date, time.UTC)
		if err != nil {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("transaction %d has bad date %q: %v", txn.ID, txn.Date, err))
		}
		created, err := time.Parse(time.RFC3339, txn.CreatedAt)
		if err != nil {
			return nil, common.NewDecodeError(common.DecodeInvalidContent,
				fmt.Errorf("transaction %d has bad created_at %q: %v", txn.ID, txn.CreatedAt, err))
		}

		snap.Transactions = append(snap.Transactions, model.Transaction{
			ID:         txn.ID,
			Date:       date,
			Amount:     txn.Amount,
			CategoryID: txn.Category,
			Tags:       txn.Tags,
			Note:       txn.Note,
			CreatedAt:  created,
		})
	}

	return snap, nil
}
