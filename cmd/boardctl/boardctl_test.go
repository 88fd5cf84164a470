package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/taskboard/internal/client"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/memstore"
	"github.com/iliyamo/taskboard/internal/router"
	"github.com/iliyamo/taskboard/internal/service"
)

func startServer(t *testing.T) string {
	t.Helper()
	db := memstore.New()
	log := zap.NewNop()
	users, boards, lists, cards := memstore.Users{DB: db}, memstore.Boards{DB: db}, memstore.Lists{DB: db}, memstore.Cards{DB: db}
	us := service.NewUserService(users, memstore.Tokens{DB: db}, nil, service.AuthConfig{Secret: "cli-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, log)
	srv := httptest.NewServer(router.New(router.Deps{
		Users:  handler.NewUserHandler(us, false),
		Boards: handler.NewBoardHandler(service.NewBoardService(boards, users, nil, log)),
		Lists:  handler.NewListHandler(service.NewListService(lists, boards, nil, log)),
		Cards:  handler.NewCardHandler(service.NewCardService(cards, lists, boards, nil, log)),
		Auth:   us,
		Log:    log,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginPersistsTokenAndDrivesBoards(t *testing.T) {
	url := startServer(t)
	_, err := client.New(url).Register(context.Background(), "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	cfg := filepath.Join(t.TempDir(), "boardctl.yaml")
	base := []string{"--config", cfg, "--server", url}

	out, err := run(t, append(base, "login", "--email", "alice@example.com", "--password", "secret1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as Alice")
	raw, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token:")

	out, err = run(t, append(base, "board", "create", "Sprint", "1")...)
	require.NoError(t, err)
	var boardID, listID uint64
	_, err = fmt.Sscanf(out, "created board %d", &boardID)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"Sprint 1"`)

	out, err = run(t, append(base, "list", "create", fmt.Sprint(boardID), "Todo")...)
	require.NoError(t, err)
	_, err = fmt.Sscanf(out, "created list %d", &listID)
	require.NoError(t, err, out)

	out, err = run(t, append(base, "card", "create", fmt.Sprint(listID), "Write spec")...)
	require.NoError(t, err)
	assert.Contains(t, out, "position 0")

	out, err = run(t, append(base, "lists", fmt.Sprint(boardID))...)
	require.NoError(t, err)
	assert.Contains(t, out, "Sprint 1")
	assert.Contains(t, out, "Todo")
	assert.Contains(t, out, "Write spec")

	out, err = run(t, append(base, "boards")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Sprint 1")
}

func TestBadIDIsRejectedLocally(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "boardctl.yaml")
	_, err := run(t, "--config", cfg, "lists", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid board id")
}
