package main

import (
	"context"
	"fmt"

	"koon/internal/db"
	"koon/internal/docstore"
	"koon/internal/exchange"
	"koon/internal/seed"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with fake donation records",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of donation records to create",
			Value:   20,
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		documents := docstore.NewPostgres(pool)
		if err := documents.Migrate(ctx); err != nil {
			return err
		}

		svc := exchange.NewService(documents, logrus.StandardLogger())

		logrus.Info("Seeding donation records...")
		if err := seed.SeedFakeMaterials(ctx, svc, c.Int("count")); err != nil {
			return fmt.Errorf("failed to seed donation records: %w", err)
		}

		logrus.Info("Donation records seeded successfully")

		return nil
	},
}
