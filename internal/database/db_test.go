package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{User: "app", Pass: "pw", Host: "db", Port: "3307", Name: "boards"})
	assert.True(t, strings.HasPrefix(dsn, "app:pw@tcp(db:3307)/boards?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")

	noPass := DSN(config.Database{User: "app", Host: "db", Port: "3306", Name: "boards"})
	assert.True(t, strings.HasPrefix(noPass, "app@tcp(db:3306)/boards?"))
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
