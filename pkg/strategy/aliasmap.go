package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// AliasMap replaces cell values using the alias map configured on each
// context. Unmapped values are reported and left untouched.
type AliasMap struct{}

func (AliasMap) Name() string { return manifest.StrategyAliasMap }

func (AliasMap) Transform(_ context.Context, tc *resolver.TableContext, env *Env) error {
	for _, rc := range tc.Contexts {
		am := rc.Config.AliasMap
		if am == nil {
			continue
		}
		kind, ok := am.OutputType.Kind()
		if !ok {
			return extract.ConfigErrorf("alias_map", "unknown output_type %q", am.OutputType)
		}
		keys := am.Mappings.Keys()

		for _, col := range rc.Columns(tc.Table) {
			for row, cell := range col.Cells {
				if cell.IsMulti() {
					items := make([]table.Cell, len(cell.Items))
					for i, item := range cell.Items {
						items[i] = applyAlias(tc, col, row, item, am, kind, keys, env)
					}
					cell.Items = items
					col.Cells[row] = cell
					continue
				}
				col.Cells[row] = applyAlias(tc, col, row, cell, am, kind, keys, env)
			}
			col.Retype()
		}
	}
	return nil
}

func applyAlias(tc *resolver.TableContext, col *table.Column, row int, cell table.Cell,
	am *manifest.AliasMap, kind table.Kind, keys []string, env *Env) table.Cell {
	raw := cell.Source()
	alias, ok := am.Mappings[raw]
	if !ok {
		if !cell.IsNull() {
			env.report(extract.NewValidationError(tc.Locate(col, row, raw),
				extract.ErrUnmapped, suggest(raw, keys)...))
		}
		return cell
	}
	if alias == nil {
		return table.NullCell()
	}
	out, err := coerce(*alias, kind)
	if err != nil {
		env.report(extract.NewFormatError(tc.Locate(col, row, raw), err))
		return cell
	}
	return out
}

// coerce converts an alias to the declared output kind.
func coerce(value string, kind table.Kind) (table.Cell, error) {
	v := strings.TrimSpace(value)
	switch kind {
	case table.Bool:
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return table.Cell{}, fmt.Errorf("alias %q is not a boolean: %w", value, extract.ErrUnparseable)
		}
		return table.BoolCell(b), nil
	case table.Int:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return table.Cell{}, fmt.Errorf("alias %q is not an integer: %w", value, extract.ErrUnparseable)
		}
		return table.IntCell(i), nil
	case table.Float:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return table.Cell{}, fmt.Errorf("alias %q is not a float: %w", value, extract.ErrUnparseable)
		}
		return table.FloatCell(f), nil
	}
	return table.Str(value), nil
}
