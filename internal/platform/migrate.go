package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// tablePrefixPattern restricts DB_TABLE_PREFIX to safe SQL identifier
// characters — it is interpolated into DDL, so it cannot come from
// unsanitized input.
var tablePrefixPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,30}$`)

// RunAdminMigrations applies the Admin control-plane schema migrations.
// Table names are fixed; no per-instance prefixing is needed here.
func RunAdminMigrations(databaseURL, migrationsDir string) error {
	return runMigrations(databaseURL, migrationsDir)
}

// RunSEMigrations applies the Storage Element schema migrations, rendering
// the `{{prefix}}` placeholder in each migration file into the SE's table
// prefix before handing the rendered tree to golang-migrate.
//
// This is where table identifiers are computed: at bootstrap time, from the
// SE's own configuration, not baked into source at package-declaration time.
// That resolves the source's bug of fixing table names via class-level string
// interpolation, which made per-instance prefixes impossible to test (see
// DESIGN.md).
func RunSEMigrations(databaseURL, migrationsDir, prefix string) error {
	if !tablePrefixPattern.MatchString(prefix) {
		return fmt.Errorf("invalid table prefix %q: must match %s", prefix, tablePrefixPattern.String())
	}

	renderedDir, err := renderMigrations(migrationsDir, prefix)
	if err != nil {
		return fmt.Errorf("rendering SE migrations for prefix %q: %w", prefix, err)
	}
	defer os.RemoveAll(renderedDir)

	return runMigrations(databaseURL, renderedDir)
}

// renderMigrations copies migrationsDir into a temp directory, substituting
// "{{prefix}}" with prefix in every .sql file's contents and filename.
func renderMigrations(migrationsDir, prefix string) (string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return "", fmt.Errorf("reading migrations dir: %w", err)
	}

	dst, err := os.MkdirTemp("", "artstore-se-migrations-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			os.RemoveAll(dst)
			return "", fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		rendered := strings.ReplaceAll(string(raw), "{{prefix}}", prefix)
		outName := strings.ReplaceAll(e.Name(), "{{prefix}}", prefix)

		if err := os.WriteFile(filepath.Join(dst, outName), []byte(rendered), 0o644); err != nil {
			os.RemoveAll(dst)
			return "", fmt.Errorf("writing %s: %w", outName, err)
		}
	}

	return dst, nil
}

func runMigrations(databaseURL, migrationsDir string) error {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsDir),
		databaseURL,
	)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
