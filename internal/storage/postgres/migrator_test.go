package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func migrationPair(version, name, up, down string) fstest.MapFS {
	return fstest.MapFS{
		"sql/migrations/" + version + "_" + name + ".up.sql":   {Data: []byte(up)},
		"sql/migrations/" + version + "_" + name + ".down.sql": {Data: []byte(down)},
	}
}

func TestReadMigrations(t *testing.T) {
	t.Parallel()

	t.Run("sorted by version", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"sql/migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
			"sql/migrations/0002_more.down.sql": {Data: []byte("DROP TABLE IF EXISTS b;")},
			"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
			"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
		}

		migrations, err := readMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, migrations, 2)
		require.Equal(t, int64(1), migrations[0].Version)
		require.Equal(t, "init", migrations[0].Name)
		require.Equal(t, int64(2), migrations[1].Version)
		require.Equal(t, "more", migrations[1].Name)
	})

	t.Run("missing down file", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"sql/migrations/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		}

		_, err := readMigrations(fsys)
		require.ErrorContains(t, err, "no down file")
	})

	t.Run("missing up file", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
		}

		_, err := readMigrations(fsys)
		require.ErrorContains(t, err, "no up file")
	})

	t.Run("unparseable file name", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
		}

		_, err := readMigrations(fsys)
		require.ErrorContains(t, err, "unexpected migration file name")
	})

	t.Run("blank body", func(t *testing.T) {
		t.Parallel()

		fsys := migrationPair("0001", "init", "   \n", "DROP TABLE IF EXISTS a;")

		_, err := readMigrations(fsys)
		require.ErrorContains(t, err, "empty migration file")
	})

	t.Run("two names for one version", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
			"sql/migrations/0001_other.up.sql":  {Data: []byte("CREATE TABLE b (id INT);")},
			"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
		}

		_, err := readMigrations(fsys)
		require.Error(t, err)
	})

	t.Run("no files at all", func(t *testing.T) {
		t.Parallel()

		_, err := readMigrations(fstest.MapFS{})
		require.ErrorContains(t, err, "no migration files")
	})
}

// Ломаная embedded-миграция должна падать на тестах, а не на старте сервиса.
func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	t.Parallel()

	migrations, err := readMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for _, m := range migrations {
		require.NotEmpty(t, m.UpSQL, "migration %d_%s has no up body", m.Version, m.Name)
		require.NotEmpty(t, m.DownSQL, "migration %d_%s has no down body", m.Version, m.Name)
	}
}
