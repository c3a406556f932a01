// Package grouper partitions the resolved contexts of a table into standalone
// contexts and building blocks that assemble into one composite entry per
// column index.
package grouper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
)

// Block is a set of contexts sharing a building block id. Every member binds
// Cardinality columns, and column i of each member describes the same entry.
type Block struct {
	ID          string
	Members     []*resolver.Resolved
	Cardinality int
}

type Partition struct {
	Standalone []*resolver.Resolved
	Blocks     []*Block
}

// Group partitions contexts. Inert contexts and block members bound to no
// column are dropped. A context whose block id no other context shares is
// standalone. Blocks whose members disagree on cardinality are excluded and
// reported as CollectionErrors; the remaining partition is still returned.
func Group(table string, contexts []*resolver.Resolved) (Partition, error) {
	var part Partition
	byID := make(map[string]*Block)
	var order []string

	for _, rc := range contexts {
		if rc.Inert() {
			continue
		}
		id := rc.BlockID()
		if id == "" {
			part.Standalone = append(part.Standalone, rc)
			continue
		}
		if rc.Cardinality() == 0 {
			continue
		}
		b, ok := byID[id]
		if !ok {
			b = &Block{ID: id}
			byID[id] = b
			order = append(order, id)
		}
		b.Members = append(b.Members, rc)
	}

	var errs []error
	for _, id := range order {
		b := byID[id]
		if len(b.Members) == 1 {
			part.Standalone = append(part.Standalone, b.Members[0])
			continue
		}
		b.Cardinality = b.Members[0].Cardinality()
		if err := checkCardinality(table, b); err != nil {
			errs = append(errs, err)
			continue
		}
		part.Blocks = append(part.Blocks, b)
	}
	return part, errors.Join(errs...)
}

func checkCardinality(table string, b *Block) error {
	for _, m := range b.Members[1:] {
		if m.Cardinality() != b.Cardinality {
			return extract.NewCollectionError(
				extract.Location{Table: table, Block: b.ID},
				fmt.Errorf("%s binds %d columns, %s binds %d: %w",
					b.Members[0].Config.Identifier, b.Cardinality,
					m.Config.Identifier, m.Cardinality(), extract.ErrCardinality))
		}
	}
	return nil
}

// Ledger remembers the cardinality of each block id across the tables of a
// run. It is safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	blocks map[string]ledgerEntry
}

type ledgerEntry struct {
	table       string
	cardinality int
}

func NewLedger() *Ledger {
	return &Ledger{blocks: make(map[string]ledgerEntry)}
}

// Check records the blocks of part and returns part without the blocks whose
// cardinality differs from an earlier table, with one CollectionError each.
func (l *Ledger) Check(table string, part Partition) (Partition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	kept := part.Blocks[:0:0]
	for _, b := range part.Blocks {
		seen, ok := l.blocks[b.ID]
		if !ok {
			l.blocks[b.ID] = ledgerEntry{table: table, cardinality: b.Cardinality}
			kept = append(kept, b)
			continue
		}
		if seen.cardinality != b.Cardinality {
			errs = append(errs, extract.NewCollectionError(
				extract.Location{Table: table, Block: b.ID},
				fmt.Errorf("block has %d columns here but %d in table %s: %w",
					b.Cardinality, seen.cardinality, seen.table, extract.ErrCardinality)))
			continue
		}
		kept = append(kept, b)
	}
	part.Blocks = kept
	return part, errors.Join(errs...)
}
