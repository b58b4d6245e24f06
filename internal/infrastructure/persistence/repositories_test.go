package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/delivery/backend/internal/application/maintenance"
	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/settings"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database with every table
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or each new connection sees an empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createRestaurant(t *testing.T, db *gorm.DB, name, phone string) *restaurant.Restaurant {
	t.Helper()
	r, err := restaurant.NewRestaurant(name, phone, "Avenue Habib Bourguiba, Tunis")
	require.NoError(t, err)
	require.NoError(t, NewGormRestaurantRepository(db).Save(context.Background(), r))
	return r
}

func createProduct(t *testing.T, db *gorm.DB, restaurantID uuid.UUID, name string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(restaurantID, name, catalog.ProductTypePizza, []catalog.ProductPrice{
		{Size: catalog.SizeSmall, Price: decimal.RequireFromString("9.5")},
		{Size: catalog.SizeLarge, Price: decimal.RequireFromString("17")},
	})
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Save(context.Background(), p))
	return p
}

func createOrder(t *testing.T, db *gorm.DB, restaurantID uuid.UUID, product *catalog.Product) *order.Order {
	t.Helper()
	o, err := order.NewOrder(restaurantID, order.Customer{
		Name:    "Amira",
		Phone:   "22123456",
		Address: "Rue de Marseille, Tunis",
	}, order.PaymentMethodCash)
	require.NoError(t, err)
	require.NoError(t, o.AddItem(product, catalog.SizeSmall, 2))
	require.NoError(t, NewGormOrderRepository(db).Save(context.Background(), o))
	return o
}

func createDriver(t *testing.T, db *gorm.DB, name, phone string, status driver.Status) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(name, phone, "secret123")
	require.NoError(t, err)
	d.Status = status
	require.NoError(t, NewGormDriverRepository(db).Save(context.Background(), d))
	return d
}

func TestGormRestaurantRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find round trip", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormRestaurantRepository(db)

		r := createRestaurant(t, db, "Pizza Roma", "71 234 567")
		r.SetCategories([]string{"Pizza", "Italian"})
		hours, err := restaurant.ParseOpeningHours("11:00-23:00|Monday")
		require.NoError(t, err)
		r.SetOpeningHours(hours)
		require.NoError(t, repo.Save(ctx, r))

		found, err := repo.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pizza Roma", found.Name)
		assert.Equal(t, "71234567", found.Phone)
		assert.Equal(t, hours, found.OpeningHours)
		assert.Contains(t, found.Categories, "Pizza")

		byPhone, err := repo.FindByPhone(ctx, "71234567")
		require.NoError(t, err)
		assert.Equal(t, r.ID, byPhone.ID)
	})

	t.Run("stored opening hours text survives unrelated saves", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormRestaurantRepository(db)
		r := createRestaurant(t, db, "Chez Salah", "71234567")

		storedHours := func() string {
			var m models.RestaurantModel
			require.NoError(t, db.First(&m, "id = ?", r.ID).Error)
			return m.OpeningHours
		}
		setStored := func(raw string) {
			require.NoError(t, db.Model(&models.RestaurantModel{}).Where("id = ?", r.ID).
				Update("opening_hours", raw).Error)
		}

		for _, raw := range []string{"tous les jours sauf lundi", "11:00-23:00|Lundi"} {
			setStored(raw)

			found, err := repo.FindByID(ctx, r.ID)
			require.NoError(t, err)
			found.ToggleOpen()
			found.SetLocation(&valueobject.GeoPoint{Latitude: 36.8, Longitude: 10.18})
			require.NoError(t, repo.Save(ctx, found))

			assert.Equal(t, raw, storedHours(), raw)
		}

		found, err := repo.FindByID(ctx, r.ID)
		require.NoError(t, err)
		hours, err := restaurant.NewOpeningHours("10:00", "22:00", "")
		require.NoError(t, err)
		found.SetOpeningHours(hours)
		require.NoError(t, repo.Save(ctx, found))
		assert.Equal(t, hours.String(), storedHours())
	})

	t.Run("duplicate phone is already exists", func(t *testing.T) {
		db := setupTestDB(t)
		createRestaurant(t, db, "Pizza Roma", "71234567")

		dup, err := restaurant.NewRestaurant("Pizza Roma 2", "71234567", "Sousse")
		require.NoError(t, err)
		err = NewGormRestaurantRepository(db).Save(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("filters by search category and open flag", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormRestaurantRepository(db)

		roma := createRestaurant(t, db, "Pizza Roma", "71234567")
		roma.SetCategories([]string{"pizza"})
		require.NoError(t, repo.Save(ctx, roma))

		sushi := createRestaurant(t, db, "Sushi Bar", "71234568")
		sushi.SetCategories([]string{"japanese"})
		sushi.ToggleOpen()
		require.NoError(t, repo.Save(ctx, sushi))

		found, err := repo.FindAll(ctx, shared.Filter{Search: "ROMA"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, roma.ID, found[0].ID)

		found, err = repo.FindAll(ctx, shared.Filter{Filters: map[string]any{"category": "Japanese"}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, sushi.ID, found[0].ID)

		count, err := repo.Count(ctx, shared.Filter{Filters: map[string]any{"is_open": true}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("delete missing restaurant is not found", func(t *testing.T) {
		db := setupTestDB(t)
		err := NewGormRestaurantRepository(db).Delete(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find without location", func(t *testing.T) {
		db := setupTestDB(t)
		createRestaurant(t, db, "No Coords", "71234567")

		found, err := NewGormRestaurantRepository(db).FindWithoutLocation(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})
}

func TestGormProductRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save replaces prices", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormProductRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")

		require.NoError(t, p.SetPrices([]catalog.ProductPrice{
			{Size: catalog.SizeMedium, Price: decimal.RequireFromString("13")},
		}))
		require.NoError(t, repo.Save(ctx, p))

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, found.Prices, 1)
		assert.Equal(t, catalog.SizeMedium, found.Prices[0].Size)
		assert.True(t, decimal.RequireFromString("13").Equal(found.Prices[0].Price))

		var rows int64
		require.NoError(t, db.Model(&models.ProductPriceModel{}).Count(&rows).Error)
		assert.Equal(t, int64(1), rows)
	})

	t.Run("prices come back ordered by size", func(t *testing.T) {
		db := setupTestDB(t)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Reine")

		found, err := NewGormProductRepository(db).FindByIDs(ctx, []uuid.UUID{p.ID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Len(t, found[0].Prices, 2)
		assert.Equal(t, catalog.SizeSmall, found[0].Prices[0].Size)
		assert.Equal(t, catalog.SizeLarge, found[0].Prices[1].Size)
	})

	t.Run("filters by restaurant", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormProductRepository(db)
		a := createRestaurant(t, db, "A", "71234567")
		b := createRestaurant(t, db, "B", "71234568")
		createProduct(t, db, a.ID, "Margherita")
		createProduct(t, db, b.ID, "Tuna")

		found, err := repo.FindAll(ctx, shared.Filter{Filters: map[string]any{"restaurant_id": a.ID}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Margherita", found[0].Name)
	})

	t.Run("reassign restaurant", func(t *testing.T) {
		db := setupTestDB(t)
		a := createRestaurant(t, db, "A", "71234567")
		b := createRestaurant(t, db, "B", "71234568")
		createProduct(t, db, a.ID, "Margherita")
		createProduct(t, db, a.ID, "Tuna")

		moved, err := NewGormProductRepository(db).ReassignRestaurant(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), moved)
	})

	t.Run("delete removes prices", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormProductRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")

		require.NoError(t, repo.Delete(ctx, p.ID))
		_, err := repo.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		var rows int64
		require.NoError(t, db.Model(&models.ProductPriceModel{}).Count(&rows).Error)
		assert.Zero(t, rows)
	})
}

func TestGormOrderRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load items", func(t *testing.T) {
		db := setupTestDB(t)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		o := createOrder(t, db, r.ID, p)

		found, err := NewGormOrderRepository(db).FindByID(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, found.Items, 1)
		assert.Equal(t, 2, found.Items[0].Quantity)
		assert.True(t, decimal.RequireFromString("19").Equal(found.Subtotal))
		assert.Equal(t, order.StatusPending, found.Status)
	})

	t.Run("assign driver claims exactly once", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		o := createOrder(t, db, r.ID, p)
		first, second := uuid.New(), uuid.New()

		ok, err := repo.AssignDriver(ctx, o.ID, first, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AssignDriver(ctx, o.ID, second, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		require.NotNil(t, found.DriverID)
		assert.Equal(t, first, *found.DriverID)
		assert.Equal(t, order.StatusAccepted, found.Status)
		assert.NotNil(t, found.AssignedAt)
	})

	t.Run("assign driver keeps a later status", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		o := createOrder(t, db, r.ID, p)
		require.NoError(t, o.TransitionTo(order.StatusAccepted))
		require.NoError(t, o.TransitionTo(order.StatusPreparing))
		require.NoError(t, repo.Save(ctx, o))

		ok, err := repo.AssignDriver(ctx, o.ID, uuid.New(), time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPreparing, found.Status)
	})

	t.Run("assign driver refuses terminal orders", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		o := createOrder(t, db, r.ID, p)
		require.NoError(t, o.Reject("closed"))
		require.NoError(t, repo.Save(ctx, o))

		ok, err := repo.AssignDriver(ctx, o.ID, uuid.New(), time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save with lock detects stale version", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		o := createOrder(t, db, r.ID, p)

		stale, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)

		require.NoError(t, o.TransitionTo(order.StatusAccepted))
		require.NoError(t, repo.SaveWithLock(ctx, o))
		assert.Equal(t, 2, o.Version)

		require.NoError(t, stale.Reject("too late"))
		err = repo.SaveWithLock(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("filters and active count", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		p := createProduct(t, db, r.ID, "Margherita")
		a := createOrder(t, db, r.ID, p)
		createOrder(t, db, r.ID, p)
		driverID := uuid.New()

		ok, err := repo.AssignDriver(ctx, a.ID, driverID, time.Now())
		require.NoError(t, err)
		require.True(t, ok)

		found, err := repo.FindAll(ctx, shared.Filter{Filters: map[string]any{"status": order.StatusPending}})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		active, err := repo.CountActiveByDriver(ctx, driverID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), active)
	})
}

func TestGormOrderRepository_AssignDriverSQL(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := NewGormOrderRepository(gormDB)

	guarded := `UPDATE "orders" SET .*"status"=CASE WHEN status = \$\d+ THEN \$\d+ ELSE status END.* WHERE id = \$\d+ AND driver_id IS NULL AND status IN \(\$\d+,\$\d+,\$\d+,\$\d+,\$\d+\)`

	t.Run("one row means claimed", func(t *testing.T) {
		mock.ExpectExec(guarded).WillReturnResult(sqlmock.NewResult(0, 1))
		ok, err := repo.AssignDriver(context.Background(), uuid.New(), uuid.New(), time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("zero rows means already taken", func(t *testing.T) {
		mock.ExpectExec(guarded).WillReturnResult(sqlmock.NewResult(0, 0))
		ok, err := repo.AssignDriver(context.Background(), uuid.New(), uuid.New(), time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormIdempotencyKeyRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormIdempotencyKeyRepository(db)

	key, err := order.NewIdempotencyKey("checkout-1", uuid.New(), "hash", time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, key))

	found, err := repo.Find(ctx, "checkout-1")
	require.NoError(t, err)
	assert.Equal(t, key.OrderID, found.OrderID)

	dup, err := order.NewIdempotencyKey("checkout-1", uuid.New(), "hash", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)

	_, err = repo.Find(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	purged, err := repo.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestGormDriverRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatch candidates rotate by last offer", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormDriverRepository(db)
		a := createDriver(t, db, "Ali", "22000001", driver.StatusAvailable)
		b := createDriver(t, db, "Bechir", "22000002", driver.StatusAvailable)
		c := createDriver(t, db, "Chokri", "22000003", driver.StatusAvailable)
		createDriver(t, db, "Offline", "22000004", driver.StatusOffline)

		now := time.Now()
		require.NoError(t, repo.MarkOffered(ctx, a.ID, now.Add(-time.Minute)))
		require.NoError(t, repo.MarkOffered(ctx, b.ID, now.Add(-2*time.Minute)))

		found, err := repo.FindDispatchCandidates(ctx, nil)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, c.ID, found[0].ID, "never offered leads")
		assert.Equal(t, b.ID, found[1].ID)
		assert.Equal(t, a.ID, found[2].ID)

		found, err = repo.FindDispatchCandidates(ctx, []uuid.UUID{c.ID})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, b.ID, found[0].ID)
	})

	t.Run("find by telegram and update status", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormDriverRepository(db)
		d := createDriver(t, db, "Ali", "22000001", driver.StatusAvailable)
		require.NoError(t, d.LinkTelegram("123456789"))
		require.NoError(t, repo.Save(ctx, d))

		found, err := repo.FindByTelegramID(ctx, "123456789")
		require.NoError(t, err)
		assert.Equal(t, d.ID, found.ID)

		_, err = repo.FindByTelegramID(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		require.NoError(t, repo.UpdateStatus(ctx, d.ID, driver.StatusOnDelivery))
		found, err = repo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, driver.StatusOnDelivery, found.Status)

		assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), driver.StatusOffline), shared.ErrNotFound)
	})
}

func TestGormIdentityRepositories(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("admin users", func(t *testing.T) {
		repo := NewGormAdminUserRepository(db)
		admin, err := identity.NewAdminUser("Owner", "password123")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, admin))

		found, err := repo.FindByUsername(ctx, "OWNER")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, found.ID)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("customers replace addresses", func(t *testing.T) {
		repo := NewGormCustomerRepository(db)
		c, err := identity.NewCustomer("22123456", "Amira")
		require.NoError(t, err)
		home, err := c.AddAddress("Home", "Rue de Marseille", nil, true)
		require.NoError(t, err)
		_, err = c.AddAddress("Work", "Les Berges du Lac", nil, false)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, c))

		require.NoError(t, c.RemoveAddress(home.ID))
		require.NoError(t, repo.Save(ctx, c))

		found, err := repo.FindByPhone(ctx, "22123456")
		require.NoError(t, err)
		require.Len(t, found.Addresses, 1)
		assert.Equal(t, "Work", found.Addresses[0].Label)
	})

	t.Run("otp latest and purge", func(t *testing.T) {
		repo := NewGormOTPRepository(db)
		old, _, err := identity.NewOTPCode("22123456", time.Minute)
		require.NoError(t, err)
		old.CreatedAt = old.CreatedAt.Add(-time.Hour)
		old.ExpiresAt = old.CreatedAt.Add(time.Minute)
		require.NoError(t, repo.Save(ctx, old))

		latest, _, err := identity.NewOTPCode("22123456", 5*time.Minute)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, latest))

		found, err := repo.FindLatest(ctx, "22123456")
		require.NoError(t, err)
		assert.Equal(t, latest.ID, found.ID)

		purged, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
	})
}

func TestGormOfferRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormOfferRepository(db)
	orderID := uuid.New()
	refuser, waiting, accepter := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	refused := dispatch.NewOffer(orderID, refuser, dispatch.ChannelSMS, now.Add(-2*time.Minute))
	require.NoError(t, refused.Close(dispatch.OutcomeRefused, now.Add(-time.Minute)))
	require.NoError(t, repo.Save(ctx, refused))
	require.NoError(t, repo.Save(ctx, dispatch.NewOffer(orderID, waiting, dispatch.ChannelTelegram, now.Add(-time.Minute))))
	require.NoError(t, repo.Save(ctx, dispatch.NewOffer(orderID, accepter, dispatch.ChannelTelegram, now)))

	excluded, err := repo.ExcludedDrivers(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{refuser}, excluded)

	open, err := repo.FindOpen(ctx, orderID, accepter)
	require.NoError(t, err)
	assert.Equal(t, dispatch.OutcomeOffered, open.Outcome)

	_, err = repo.FindOpen(ctx, orderID, refuser)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	closed, err := repo.CloseOpen(ctx, orderID, accepter, dispatch.OutcomeSuperseded, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	all, err := repo.FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, dispatch.OutcomeSuperseded, all[1].Outcome)
	assert.Equal(t, dispatch.OutcomeOffered, all[2].Outcome)

	messages := NewGormTelegramMessageRepository(db)
	require.NoError(t, messages.Save(ctx, &dispatch.TelegramMessage{
		ID: uuid.New(), OrderID: orderID, DriverID: waiting, ChatID: "42", MessageID: 7, CreatedAt: now,
	}))
	sent, err := messages.FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, int64(7), sent[0].MessageID)
}

func TestGormSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSettingsRepository(setupTestDB(t))

	fee, err := settings.NewSetting(settings.KeyDeliveryFee, []byte(`"2.000"`))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, fee))

	fee.Value = []byte(`"3.500"`)
	require.NoError(t, repo.Upsert(ctx, fee))

	found, err := repo.Get(ctx, settings.KeyDeliveryFee)
	require.NoError(t, err)
	assert.JSONEq(t, `"3.500"`, string(found.Value))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormMaintenanceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("opening hours listing and update", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormMaintenanceStore(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		require.NoError(t, db.Model(&models.RestaurantModel{}).Where("id = ?", r.ID).
			Update("opening_hours", "10:00-22:00|Lundi").Error)

		raw, err := store.ListOpeningHours(ctx)
		require.NoError(t, err)
		require.Len(t, raw, 1)
		assert.Equal(t, "10:00-22:00|Lundi", raw[0].Raw)

		require.NoError(t, store.UpdateOpeningHours(ctx, r.ID, `{"open":"10:00","close":"22:00","closedDay":"Monday"}`))
		raw, err = store.ListOpeningHours(ctx)
		require.NoError(t, err)
		assert.Contains(t, raw[0].Raw, `"closedDay":"Monday"`)
	})

	t.Run("image urls across tables", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormMaintenanceStore(db)
		r := createRestaurant(t, db, "Pizza Roma", "71234567")
		r.SetImage("/uploads/roma.jpg")
		require.NoError(t, NewGormRestaurantRepository(db).Save(ctx, r))
		p := createProduct(t, db, r.ID, "Margherita")
		p.SetImage("http://old.example.com/m.jpg")
		require.NoError(t, NewGormProductRepository(db).Save(ctx, p))

		refs, err := store.ListImageURLs(ctx)
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, maintenance.TableRestaurants, refs[0].Table)
		assert.Equal(t, maintenance.TableProducts, refs[1].Table)

		require.NoError(t, store.UpdateImageURL(ctx, refs[1], "https://cdn.example.com/m.jpg"))
		found, err := NewGormProductRepository(db).FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/m.jpg", found.ImageURL)

		assert.Error(t, store.UpdateImageURL(ctx, maintenance.ImageRef{Table: "drivers", ID: r.ID}, "x"))
	})

	t.Run("merge restaurants", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormMaintenanceStore(db)
		keep := createRestaurant(t, db, "Pizza Roma", "71234567")
		drop := createRestaurant(t, db, "Pizza Roma", "71234568")
		p := createProduct(t, db, drop.ID, "Margherita")
		createOrder(t, db, drop.ID, p)

		res, err := store.MergeRestaurants(ctx, keep.ID, drop.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Products)
		assert.Equal(t, int64(1), res.Orders)

		_, err = NewGormRestaurantRepository(db).FindByID(ctx, drop.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		keys, err := store.ListRestaurantKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)

		_, err = store.MergeRestaurants(ctx, keep.ID, keep.ID)
		assert.Error(t, err)
	})
}
