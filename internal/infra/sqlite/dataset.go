package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/capx-network/capmap/internal/domain"
)

// Name and count kinds.
const (
	kindTerritory = "territory"
	kindLanguage  = "language"
	kindCapacity  = "capacity"

	kindTerritoryUsers = "territory_users"
	kindLanguageUsers  = "language_users"
	kindSkillAvailable = "skill_available"
	kindSkillWanted    = "skill_wanted"
)

// Import is one recorded dataset import.
type Import struct {
	ID          int64     `json:"id"`
	ImportedAt  time.Time `json:"imported_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Territories int       `json:"territories"`
	Source      string    `json:"source,omitempty"`
}

// ─── Dataset Repository ─────────────────────────────────────────────────────

// SaveDataset replaces the stored dataset.
func (d *DB) SaveDataset(ds domain.Dataset) error {
	return d.ImportDataset(ds, "")
}

// ImportDataset replaces the stored dataset and records source (a file
// path or "api") in the import history. The replacement is atomic.
func (d *DB) ImportDataset(ds domain.Dataset, source string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"names", "counts", "territory_languages", "territory_capacities"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for kind, m := range map[string]map[string]string{
		kindTerritory: ds.Territories,
		kindLanguage:  ds.Languages,
		kindCapacity:  ds.Capacities,
	} {
		for id, name := range m {
			if _, err := tx.Exec(`INSERT INTO names (kind, id, name) VALUES (?, ?, ?)`, kind, id, name); err != nil {
				return fmt.Errorf("insert %s name %s: %w", kind, id, err)
			}
		}
	}

	for kind, m := range map[string]map[string]int{
		kindTerritoryUsers: ds.TerritoryUserCounts,
		kindLanguageUsers:  ds.LanguageUserCounts,
		kindSkillAvailable: ds.SkillAvailableCounts,
		kindSkillWanted:    ds.SkillWantedCounts,
	} {
		for id, v := range m {
			if _, err := tx.Exec(`INSERT INTO counts (kind, id, value) VALUES (?, ?, ?)`, kind, id, v); err != nil {
				return fmt.Errorf("insert %s count %s: %w", kind, id, err)
			}
		}
	}

	for tid, langs := range ds.LanguagesByTerritory {
		for lid, n := range langs {
			if _, err := tx.Exec(
				`INSERT INTO territory_languages (territory_id, language_id, users) VALUES (?, ?, ?)`,
				tid, lid, n,
			); err != nil {
				return fmt.Errorf("insert territory language %s/%s: %w", tid, lid, err)
			}
		}
	}

	for tid, caps := range ds.CapacitiesByTerritory {
		for cid, c := range caps {
			if _, err := tx.Exec(
				`INSERT INTO territory_capacities (territory_id, capacity_id, available, wanted) VALUES (?, ?, ?, ?)`,
				tid, cid, c.Available, c.Wanted,
			); err != nil {
				return fmt.Errorf("insert territory capacity %s/%s: %w", tid, cid, err)
			}
		}
	}

	updated := ds.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := tx.Exec(
		`INSERT INTO dataset_imports (imported_at, updated_at, territories, source) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), updated.Unix(), len(ds.Territories), source,
	); err != nil {
		return fmt.Errorf("record import: %w", err)
	}

	return tx.Commit()
}

// LoadDataset reads the stored dataset. It returns domain.ErrNoDataset when
// nothing was ever imported.
func (d *DB) LoadDataset() (domain.Dataset, error) {
	last, err := d.LastImport()
	if err != nil {
		return domain.Dataset{}, err
	}
	if last == nil {
		return domain.Dataset{}, domain.ErrNoDataset
	}

	ds := domain.Dataset{
		Territories:           map[string]string{},
		TerritoryUserCounts:   map[string]int{},
		Languages:             map[string]string{},
		LanguageUserCounts:    map[string]int{},
		LanguagesByTerritory:  map[string]map[string]int{},
		Capacities:            map[string]string{},
		SkillAvailableCounts:  map[string]int{},
		SkillWantedCounts:     map[string]int{},
		CapacitiesByTerritory: map[string]map[string]domain.CapacityCount{},
		UpdatedAt:             last.UpdatedAt,
	}

	names := map[string]map[string]string{
		kindTerritory: ds.Territories,
		kindLanguage:  ds.Languages,
		kindCapacity:  ds.Capacities,
	}
	if err := d.each(`SELECT kind, id, name FROM names`, func(s scanner) error {
		var kind, id, name string
		if err := s.Scan(&kind, &id, &name); err != nil {
			return err
		}
		if m, ok := names[kind]; ok {
			m[id] = name
		}
		return nil
	}); err != nil {
		return domain.Dataset{}, fmt.Errorf("load names: %w", err)
	}

	counts := map[string]map[string]int{
		kindTerritoryUsers: ds.TerritoryUserCounts,
		kindLanguageUsers:  ds.LanguageUserCounts,
		kindSkillAvailable: ds.SkillAvailableCounts,
		kindSkillWanted:    ds.SkillWantedCounts,
	}
	if err := d.each(`SELECT kind, id, value FROM counts`, func(s scanner) error {
		var kind, id string
		var v int
		if err := s.Scan(&kind, &id, &v); err != nil {
			return err
		}
		if m, ok := counts[kind]; ok {
			m[id] = v
		}
		return nil
	}); err != nil {
		return domain.Dataset{}, fmt.Errorf("load counts: %w", err)
	}

	if err := d.each(`SELECT territory_id, language_id, users FROM territory_languages`, func(s scanner) error {
		var tid, lid string
		var n int
		if err := s.Scan(&tid, &lid, &n); err != nil {
			return err
		}
		if ds.LanguagesByTerritory[tid] == nil {
			ds.LanguagesByTerritory[tid] = map[string]int{}
		}
		ds.LanguagesByTerritory[tid][lid] = n
		return nil
	}); err != nil {
		return domain.Dataset{}, fmt.Errorf("load territory languages: %w", err)
	}

	if err := d.each(`SELECT territory_id, capacity_id, available, wanted FROM territory_capacities`, func(s scanner) error {
		var tid, cid string
		var c domain.CapacityCount
		if err := s.Scan(&tid, &cid, &c.Available, &c.Wanted); err != nil {
			return err
		}
		if ds.CapacitiesByTerritory[tid] == nil {
			ds.CapacitiesByTerritory[tid] = map[string]domain.CapacityCount{}
		}
		ds.CapacitiesByTerritory[tid][cid] = c
		return nil
	}); err != nil {
		return domain.Dataset{}, fmt.Errorf("load territory capacities: %w", err)
	}

	return ds, nil
}

// LastImport returns the most recent import, or nil.
func (d *DB) LastImport() (*Import, error) {
	row := d.db.QueryRow(
		`SELECT id, imported_at, updated_at, territories, source
		 FROM dataset_imports ORDER BY id DESC LIMIT 1`,
	)
	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// ListImports returns up to limit imports, newest first.
func (d *DB) ListImports(limit int) ([]Import, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Import
	err := d.each(
		fmt.Sprintf(`SELECT id, imported_at, updated_at, territories, source
		 FROM dataset_imports ORDER BY id DESC LIMIT %d`, limit),
		func(s scanner) error {
			imp, err := scanImport(s)
			if err != nil {
				return err
			}
			out = append(out, *imp)
			return nil
		},
	)
	return out, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (d *DB) each(query string, fn func(scanner) error) error {
	rows, err := d.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanImport(s scanner) (*Import, error) {
	var imp Import
	var importedAt, updatedAt int64
	if err := s.Scan(&imp.ID, &importedAt, &updatedAt, &imp.Territories, &imp.Source); err != nil {
		return nil, err
	}
	imp.ImportedAt = time.Unix(importedAt, 0).UTC()
	imp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &imp, nil
}
