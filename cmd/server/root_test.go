package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-that-is-long-enough-123"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeout: time.Second},
		Auth:   config.AuthConfig{JWTSecret: testSecret, Issuer: "scry-test"},
	}
}

// run executes the command tree against a fixed configuration.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(func(string) (*config.Config, error) { return testConfig(), nil })
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	t.Parallel()
	root := newRootCmd(config.LoadFile)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "import", "token"})
}

func TestTokenCommand(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	out, err := run(t, "token", "--user", userID.String(), "--ttl", "1h")
	require.NoError(t, err)

	verifier, err := auth.NewJWTService(testConfig().Auth)
	require.NoError(t, err)
	claims, err := verifier.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "scry-test", claims.Issuer)
}

func TestTokenCommand_InvalidUser(t *testing.T) {
	t.Parallel()
	_, err := run(t, "token", "--user", "bob")
	assert.ErrorContains(t, err, "invalid --user")
}

func TestMigrateCommand_RejectsUnknownDirection(t *testing.T) {
	t.Parallel()
	_, err := run(t, "migrate", "sideways")
	assert.Error(t, err)

	_, err = run(t, "migrate")
	assert.Error(t, err)
}

func TestImportCommand_ValidatesBeforeConnecting(t *testing.T) {
	t.Parallel()

	_, err := run(t, "import", "--user", "nope", "deck.apkg")
	assert.ErrorContains(t, err, "invalid --user")

	_, err = run(t, "import", "--user", uuid.NewString(), t.TempDir()+"/missing.apkg")
	assert.ErrorContains(t, err, "failed to read archive")

	_, err = run(t, "import", "deck.apkg")
	assert.Error(t, err, "--user is required")
}

func TestConfigErrorsStopEveryCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd(func(string) (*config.Config, error) { return nil, errors.New("missing database url") })
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "failed to load configuration")
}
