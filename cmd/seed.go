package main

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"preservia.dev/silo-core/internal/store"
)

// demoEmail and demoPassword are the credentials of the seeded demo account.
const (
	demoEmail    = "demo@preservia.io"
	demoPassword = "Demo@1234"
)

// fakeSilo drives gofakeit struct generation for extra silos.
type fakeSilo struct {
	Name     string  `fake:"{company} Silo"`
	Location string  `fake:"{city}, {state}"`
	Capacity float64 `fake:"{number:10,40}"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo data",
	Long: `Seed the database with a demo farmer account and demo silos.
Safe to run repeatedly: existing users and silos are left untouched.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	seedCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	seedCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	seedCmd.Flags().String("db-password", "", "PostgreSQL password")
	seedCmd.Flags().String("db-name", "preservia", "PostgreSQL database name")
	seedCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	seedCmd.Flags().Int("extra-silos", 0, "Number of randomly generated silos in addition to the two demo silos")

	_ = viper.BindPFlag("seed.db.host", seedCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("seed.db.port", seedCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("seed.db.user", seedCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("seed.db.password", seedCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("seed.db.name", seedCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("seed.db.sslmode", seedCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("seed.extra_silos", seedCmd.Flags().Lookup("extra-silos"))
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	ctx := context.Background()

	db, err := store.NewDB(&store.DBConfig{
		Host:     viper.GetString("seed.db.host"),
		Port:     viper.GetInt("seed.db.port"),
		User:     viper.GetString("seed.db.user"),
		Password: viper.GetString("seed.db.password"),
		DBName:   viper.GetString("seed.db.name"),
		SSLMode:  viper.GetString("seed.db.sslmode"),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if err := store.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	st := store.New(db)

	user, err := st.UserByEmail(ctx, demoEmail)
	if err != nil {
		return err
	}
	if user == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}
		user = &store.User{
			Name:         "Demo Farmer",
			Email:        demoEmail,
			PasswordHash: string(hash),
			Phone:        "+91 98765 43210",
			Role:         "farmer",
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return err
		}
		logger.Info("created demo user", "email", demoEmail)
	} else {
		logger.Info("demo user already exists", "email", demoEmail)
	}

	count, err := st.SiloCount(ctx, user.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("silos already exist, skipping", "count", count)
		return nil
	}

	silos := []store.Silo{
		{Name: "Silo A — Main Storage", OwnerID: user.ID, Location: "Nashik, Maharashtra", Capacity: 25, IsActive: true},
		{Name: "Silo B — North Block", OwnerID: user.ID, Location: "Nashik, Maharashtra", Capacity: 15, IsActive: true},
	}
	for i := 0; i < viper.GetInt("seed.extra_silos"); i++ {
		var fake fakeSilo
		if err := gofakeit.Struct(&fake); err != nil {
			return fmt.Errorf("failed to generate silo: %w", err)
		}
		silos = append(silos, store.Silo{
			Name:     fake.Name,
			OwnerID:  user.ID,
			Location: fake.Location,
			Capacity: fake.Capacity,
			IsActive: true,
		})
	}

	for i := range silos {
		if err := st.CreateSilo(ctx, &silos[i]); err != nil {
			return err
		}
	}
	logger.Info("created demo silos", "count", len(silos))

	logger.Info("seed complete")
	return nil
}
