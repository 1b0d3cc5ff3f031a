package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/financeapi"
)

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", errors.New("locked") }

func TestTokenChain(t *testing.T) {
	ctx := context.Background()

	token, err := TokenChain{financeapi.StaticToken(""), financeapi.StaticToken("stored")}.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "stored", token)

	token, err = TokenChain{financeapi.StaticToken("env"), failingToken{}}.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "env", token)

	_, err = TokenChain{financeapi.StaticToken(""), failingToken{}}.Token(ctx)
	require.Error(t, err)

	token, err = TokenChain{}.Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		APIURL:               "http://localhost:8080/api",
		ApplyPageSize:        250,
		LargeUpdateThreshold: 40,
		PrefsDBPath:          filepath.Join(t.TempDir(), "prefs.db"),
	}

	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	applier := a.Applier()
	require.Equal(t, 250, applier.PageSize)
	require.Equal(t, 40, applier.LargeUpdateThreshold)

	coord, err := a.Coordinator(context.Background())
	require.NoError(t, err)
	require.NotNil(t, coord)

	exporter, err := a.Exporter(context.Background())
	require.NoError(t, err)
	require.Nil(t, exporter)
	require.Nil(t, a.Notion())
}
