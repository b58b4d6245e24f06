// Package models holds the GORM row types. Domain types carry no tags;
// each model converts with ToDomain and FromDomain, and repositories only
// ever read and write models.
//
// Restaurants and products live in restaurant.go and catalog.go, orders
// and checkout idempotency keys in order.go, drivers, offers and sent
// Telegram messages in driver.go and dispatch.go, accounts and OTP codes
// in identity.go, and key/value settings in settings.go.
package models
