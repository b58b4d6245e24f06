package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Repositories bundles the Gorm repositories used by the integration tests
type Repositories struct {
	Restaurants *persistence.GormRestaurantRepository
	Products    *persistence.GormProductRepository
	Drivers     *persistence.GormDriverRepository
	Orders      *persistence.GormOrderRepository
	Keys        *persistence.GormIdempotencyKeyRepository
	Offers      *persistence.GormOfferRepository
	Messages    *persistence.GormTelegramMessageRepository
	OTPs        *persistence.GormOTPRepository
	Maintenance *persistence.GormMaintenanceStore
}

func newRepositories(tdb *TestDB) Repositories {
	return Repositories{
		Restaurants: persistence.NewGormRestaurantRepository(tdb.DB),
		Products:    persistence.NewGormProductRepository(tdb.DB),
		Drivers:     persistence.NewGormDriverRepository(tdb.DB),
		Orders:      persistence.NewGormOrderRepository(tdb.DB),
		Keys:        persistence.NewGormIdempotencyKeyRepository(tdb.DB),
		Offers:      persistence.NewGormOfferRepository(tdb.DB),
		Messages:    persistence.NewGormTelegramMessageRepository(tdb.DB),
		OTPs:        persistence.NewGormOTPRepository(tdb.DB),
		Maintenance: persistence.NewGormMaintenanceStore(tdb.DB),
	}
}

func createRestaurant(t *testing.T, repos Repositories, name, phone string) *restaurant.Restaurant {
	t.Helper()
	r, err := restaurant.NewRestaurant(name, phone, "Avenue Habib Bourguiba, Tunis")
	require.NoError(t, err)
	require.NoError(t, repos.Restaurants.Save(context.Background(), r))
	return r
}

func createProduct(t *testing.T, repos Repositories, restaurantID uuid.UUID, name string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(restaurantID, name, catalog.ProductTypePizza, []catalog.ProductPrice{
		{Size: catalog.SizeSmall, Price: decimal.RequireFromString("12.500")},
		{Size: catalog.SizeLarge, Price: decimal.RequireFromString("18.000")},
	})
	require.NoError(t, err)
	require.NoError(t, repos.Products.Save(context.Background(), p))
	return p
}

func createAvailableDrivers(t *testing.T, repos Repositories, n int) []*driver.Driver {
	t.Helper()
	drivers := make([]*driver.Driver, 0, n)
	for i := 0; i < n; i++ {
		d, err := driver.NewDriver(fmt.Sprintf("Driver %d", i+1), fmt.Sprintf("5%07d", i+1), "secret123")
		require.NoError(t, err)
		require.NoError(t, d.SetStatus(driver.StatusAvailable))
		require.NoError(t, repos.Drivers.Save(context.Background(), d))
		drivers = append(drivers, d)
	}
	return drivers
}

// staticTokens issues a predictable driver login token
type staticTokens struct{}

func (staticTokens) GenerateDriverLoginToken(driverID uuid.UUID, _ string) (string, error) {
	return "token-" + driverID.String(), nil
}
