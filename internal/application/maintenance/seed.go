package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SeedRestaurant is one restaurant of a seed file
type SeedRestaurant struct {
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	Categories   []string        `json:"categories"`
	DeliveryTime string          `json:"delivery_time"`
	MinOrder     decimal.Decimal `json:"min_order"`
	OpeningHours string          `json:"opening_hours"`
	ImageURL     string          `json:"image_url"`
	IsOpen       bool            `json:"is_open"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	Products     []SeedProduct   `json:"products"`
}

// SeedProduct is a product of a seed restaurant. Prices are keyed by size.
type SeedProduct struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Type        catalog.ProductType              `json:"type"`
	Category    string                           `json:"category"`
	ImageURL    string                           `json:"image_url"`
	Prices      map[catalog.Size]decimal.Decimal `json:"prices"`
}

// SeedFile loads a JSON seed file from disk
func (s *Service) SeedFile(ctx context.Context, path string) (*Report, error) {
	if path == "" {
		return newReport(JobSeed), errors.New("maintenance: seed file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return newReport(JobSeed), fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed inserts restaurants and their products. Rows that already exist
// (unique violation) count as skipped.
func (s *Service) Seed(ctx context.Context, r io.Reader) (*Report, error) {
	report := newReport(JobSeed)
	var seeds []SeedRestaurant
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return report, fmt.Errorf("decode seed file: %w", err)
	}
	for _, seed := range seeds {
		report.Processed++
		rest, err := buildRestaurant(seed)
		if err != nil {
			report.fail("%s: %v", seed.Name, err)
			continue
		}
		if err := s.restaurants.Save(ctx, rest); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				report.Skipped++
				continue
			}
			report.fail("%s: %v", seed.Name, err)
			continue
		}
		report.Updated++

		for _, sp := range seed.Products {
			report.Processed++
			p, err := buildProduct(rest, sp)
			if err != nil {
				report.fail("%s / %s: %v", seed.Name, sp.Name, err)
				continue
			}
			if err := s.products.Save(ctx, p); err != nil {
				if errors.Is(err, shared.ErrAlreadyExists) {
					report.Skipped++
					continue
				}
				report.fail("%s / %s: %v", seed.Name, sp.Name, err)
				continue
			}
			report.Updated++
		}
	}
	return report, nil
}

func buildRestaurant(seed SeedRestaurant) (*restaurant.Restaurant, error) {
	r, err := restaurant.NewRestaurant(seed.Name, seed.Phone, seed.Address)
	if err != nil {
		return nil, err
	}
	if err := r.Update(seed.Name, seed.Phone, seed.Address, seed.DeliveryTime); err != nil {
		return nil, err
	}
	r.SetCategories(seed.Categories)
	if err := r.SetMinOrder(seed.MinOrder); err != nil {
		return nil, err
	}
	oh, err := restaurant.ParseOpeningHours(seed.OpeningHours)
	if err != nil {
		return nil, err
	}
	r.SetOpeningHours(oh)
	loc, err := valueobject.GeoPointFromPtrs(seed.Latitude, seed.Longitude)
	if err != nil {
		return nil, err
	}
	r.SetLocation(loc)
	r.SetImage(seed.ImageURL)
	if seed.IsOpen != r.IsOpen {
		r.ToggleOpen()
	}
	return r, nil
}

func buildProduct(r *restaurant.Restaurant, sp SeedProduct) (*catalog.Product, error) {
	prices := make([]catalog.ProductPrice, 0, len(sp.Prices))
	for _, size := range []catalog.Size{catalog.SizeSmall, catalog.SizeMedium, catalog.SizeLarge} {
		if price, ok := sp.Prices[size]; ok {
			prices = append(prices, catalog.ProductPrice{Size: size, Price: price})
		}
	}
	if len(prices) != len(sp.Prices) {
		return nil, shared.NewDomainError("INVALID_SIZE", "Prices may only use small, medium and large")
	}
	p, err := catalog.NewProduct(r.ID, sp.Name, sp.Type, prices)
	if err != nil {
		return nil, err
	}
	if err := p.Update(sp.Name, sp.Description, sp.Category, p.ProductType); err != nil {
		return nil, err
	}
	p.SetImage(sp.ImageURL)
	return p, nil
}
