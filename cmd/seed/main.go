// Command seed populates the database with demo tenants.
package main

import (
	"flag"
	"log"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/seed"
)

func main() {
	vendors := flag.Int("vendors", 6, "Number of marketplace vendors to create")
	products := flag.Int("products", 4, "Products per vendor")
	clean := flag.Bool("clean", false, "Delete existing tenancy and catalog rows first")
	domain := flag.String("domain", "", "Base domain for demo hosts (defaults to PLATFORM_DOMAIN)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if *domain == "" {
		*domain = cfg.PlatformDomain
	}

	sum, err := seed.Demo(db, seed.Options{
		Domain:            *domain,
		Vendors:           *vendors,
		ProductsPerVendor: *products,
		Clean:             *clean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d tenants, %d users, %d vendors, %d products", sum.Tenants, sum.Users, sum.Vendors, sum.Products)
	log.Printf("Hosts: shop.%s (white label), market.%s (marketplace)", *domain, *domain)
	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
