// Package migrations embeds the SQL schema migrations.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is a single versioned schema step.
type Migration struct {
	Name string
	Up   string
	Down string
}

// All returns every migration ordered by version.
func All() ([]Migration, error) {
	entries, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(entries)

	result := make([]Migration, 0, len(entries))
	for _, upName := range entries {
		name := strings.TrimSuffix(upName, ".up.sql")
		m, err := Get(name)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// Get returns the migration with the given name, e.g. "000002_groups".
func Get(name string) (Migration, error) {
	up, err := files.ReadFile(name + ".up.sql")
	if err != nil {
		return Migration{}, fmt.Errorf("read %s up migration: %w", name, err)
	}
	down, err := files.ReadFile(name + ".down.sql")
	if err != nil {
		return Migration{}, fmt.Errorf("read %s down migration: %w", name, err)
	}
	return Migration{Name: name, Up: string(up), Down: string(down)}, nil
}
