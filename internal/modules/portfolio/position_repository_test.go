package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskcore/internal/domain"
	testingpkg "github.com/aristath/riskcore/internal/testing"
)

func newRepo(t *testing.T) *PositionRepository {
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)
	return NewPositionRepository(db.Conn(), zerolog.Nop())
}

func samplePortfolio(t *testing.T) *domain.Portfolio {
	mk := func(id string, qty, price float64, tags domain.PositionTags) domain.Position {
		p, err := domain.NewPosition(id, qty, price, tags)
		require.NoError(t, err)
		return p
	}
	pf, err := domain.NewPortfolio("growth", "Growth Fund", time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), []domain.Position{
		mk("MSFT", 100, 420.5, domain.PositionTags{Sector: "Tech", Region: "US", Currency: domain.CurrencyUSD, AssetClass: "equity"}),
		mk("BUND", 50, 98.25, domain.PositionTags{Sector: "Rates", Region: "EU", Currency: domain.CurrencyEUR, AssetClass: "fixed_income"}),
	})
	require.NoError(t, err)
	return pf
}

func TestPositionRepository_SaveAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	pf := samplePortfolio(t)

	require.NoError(t, repo.Save(ctx, pf))

	loaded, err := repo.GetPortfolio(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, "Growth Fund", loaded.Name)
	assert.True(t, pf.AsOf.Equal(loaded.AsOf))
	assert.Equal(t, []string{"BUND", "MSFT"}, loaded.InstrumentIDs())
	assert.Equal(t, pf.TotalValue(), loaded.TotalValue())

	msft, ok := loaded.Position("MSFT")
	require.True(t, ok)
	assert.Equal(t, 42050.0, msft.MarketValue)
	assert.Equal(t, "Tech", msft.Sector)
	assert.Equal(t, domain.CurrencyUSD, msft.Currency)
	assert.Equal(t, "equity", msft.AssetClass)
}

func TestPositionRepository_SaveReplacesPositions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, samplePortfolio(t)))

	only, err := domain.NewPosition("AAPL", 10, 150, domain.PositionTags{Sector: "Tech"})
	require.NoError(t, err)
	next, err := domain.NewPortfolio("growth", "Growth Fund", time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), []domain.Position{only})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, next))

	count, err := repo.GetCount(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPositionRepository_Upsert(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, samplePortfolio(t)))

	pos, err := domain.NewPosition("MSFT", 200, 400, domain.PositionTags{Sector: "Tech"})
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, "growth", pos))

	loaded, err := repo.GetPortfolio(ctx, "growth")
	require.NoError(t, err)
	msft, _ := loaded.Position("MSFT")
	assert.Equal(t, 80000.0, msft.MarketValue)
	assert.Equal(t, 2, loaded.Len())

	err = repo.Upsert(ctx, "missing", pos)
	assert.ErrorIs(t, err, domain.ErrPortfolioNotFound)
}

func TestPositionRepository_NotFoundAndList(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetPortfolio(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrPortfolioNotFound)

	ids, err := repo.ListPortfolioIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.Save(ctx, samplePortfolio(t)))
	ids, err = repo.ListPortfolioIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"growth"}, ids)

	require.NoError(t, repo.Delete(ctx, "growth"))
	assert.ErrorIs(t, repo.Delete(ctx, "growth"), domain.ErrPortfolioNotFound)
	count, err := repo.GetCount(ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
