package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

type demoProduct struct {
	category    string
	name        string
	description string
	price       string
	stock       int
}

type demoUser struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
	role      enums.UserRole
}

var demoCategories = []models.Category{
	{Name: "Electronics", Description: "Devices and gadgets"},
	{Name: "Books", Description: "Fiction and non-fiction"},
	{Name: "Clothing", Description: "Menswear and womenswear"},
}

var demoProducts = []demoProduct{
	{"Electronics", "iPhone 15 Pro", "Flagship phone with a pro camera system", "899.99", 50},
	{"Electronics", "MacBook Air M2", "Thin and light laptop", "1299.99", 25},
	{"Books", "War and Peace", "Leo Tolstoy's classic novel", "5.99", 100},
	{"Books", "Dune", "Frank Herbert's science fiction epic", "7.99", 75},
	{"Clothing", "Levi's 501 Jeans", "Straight fit denim", "39.99", 200},
	{"Clothing", "Nike Dri-FIT Tee", "Breathable training t-shirt", "19.99", 150},
}

var demoUsers = []demoUser{
	{"testuser", "testuser@example.com", "testpass123", "Test", "User", enums.UserRoleCustomer},
	{"admin", "admin@shop.com", "admin123", "Shop", "Admin", enums.UserRoleAdmin},
}

// seedReport counts what a run created; existing rows are left untouched.
type seedReport struct {
	Categories int
	Products   int
	Users      int
}

type seeder struct {
	db       *gorm.DB
	users    *users.Repository
	password config.PasswordConfig
}

func newSeeder(conn *gorm.DB, password config.PasswordConfig) *seeder {
	return &seeder{db: conn, users: users.NewRepository(conn), password: password}
}

// Run inserts the demo catalog and accounts. It is safe to run repeatedly.
func (s *seeder) Run(ctx context.Context) (seedReport, error) {
	var report seedReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categoryIDs := make(map[string]models.Category, len(demoCategories))
		for _, c := range demoCategories {
			category := c
			res := tx.Where(models.Category{Name: category.Name}).
				Attrs(models.Category{Description: category.Description}).
				FirstOrCreate(&category)
			if res.Error != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, res.Error)
			}
			report.Categories += int(res.RowsAffected)
			categoryIDs[category.Name] = category
		}

		for _, p := range demoProducts {
			product := models.Product{
				CategoryID:    categoryIDs[p.category].ID,
				Name:          p.name,
				Description:   p.description,
				Price:         decimal.RequireFromString(p.price),
				StockQuantity: p.stock,
				IsActive:      true,
			}
			res := tx.Where("name = ?", p.name).Attrs(product).FirstOrCreate(&product)
			if res.Error != nil {
				return fmt.Errorf("seed product %s: %w", p.name, res.Error)
			}
			report.Products += int(res.RowsAffected)
		}

		for _, u := range demoUsers {
			created, err := s.ensureUser(ctx, tx, u)
			if err != nil {
				return err
			}
			if created {
				report.Users++
			}
		}
		return nil
	})
	return report, err
}

// ensureUser hashes the demo password directly. The demo credentials are
// intentionally weak, so the strength rules applied at registration are
// skipped here.
func (s *seeder) ensureUser(ctx context.Context, tx *gorm.DB, u demoUser) (bool, error) {
	repo := s.users.WithTx(tx)
	_, err := repo.FindByEmail(ctx, u.email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup user %s: %w", u.email, err)
	}

	hash, err := security.HashPassword(u.password, s.password)
	if err != nil {
		return false, fmt.Errorf("hash password for %s: %w", u.username, err)
	}
	if _, err := repo.Create(ctx, users.CreateUserDTO{
		Username:     u.username,
		Email:        u.email,
		PasswordHash: hash,
		FirstName:    u.firstName,
		LastName:     u.lastName,
		Role:         u.role,
	}); err != nil {
		return false, fmt.Errorf("create user %s: %w", u.username, err)
	}
	return true, nil
}
