package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorepoints/internal/auth"
	"github.com/dukerupert/chorepoints/internal/config"
	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/logging"
	"github.com/dukerupert/chorepoints/internal/model"
	"github.com/dukerupert/chorepoints/internal/store"
)

// newSeedCmd creates a family with one parent and any number of children
// so a fresh install has accounts to log in with.
func newSeedCmd() *cobra.Command {
	var (
		tz       string
		parent   string
		pin      string
		children []string
	)

	cmd := &cobra.Command{
		Use:     "seed <family name>",
		Short:   "Create a family with PIN accounts",
		Example: "chorepoints seed Smiths --parent Alex --pin 1234 --child Sam:1111 --child Kim:2222",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("family name is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if parent == "" {
				return errors.New("--parent is required")
			}
			kids, err := parseChildren(children)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
			if tz == "" {
				tz = cfg.Location.String()
			}

			plan := seedPlan{Family: args[0], Timezone: tz}
			plan.Accounts = append(plan.Accounts, seedAccount{Name: parent, PIN: pin, Role: model.RoleParent})
			for _, k := range kids {
				plan.Accounts = append(plan.Accounts, seedAccount{Name: k[0], PIN: k[1], Role: model.RoleChild})
			}
			if err := plan.validate(); err != nil {
				return err
			}

			db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			fam, accts, err := seedFamily(cmd.Context(), db, plan)
			if err != nil {
				return err
			}
			for _, acct := range accts {
				logger.Info("account created", "family_id", fam.ID, "account_id", acct.ID, "name", acct.Name, "role", acct.Role)
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s\n", acct.Role, acct.ID, acct.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tz, "tz", "", "Family time zone (default CHOREPOINTS_TZ)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent account name")
	cmd.Flags().StringVar(&pin, "pin", "", "Parent PIN (4-6 digits)")
	cmd.Flags().StringArrayVar(&children, "child", nil, "Child as name:pin (repeatable)")
	return cmd
}

// parseChildren splits each name:pin flag value.
func parseChildren(values []string) ([][2]string, error) {
	out := make([][2]string, 0, len(values))
	for _, v := range values {
		name, pin, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("child must be name:pin, got %q", v)
		}
		out = append(out, [2]string{name, pin})
	}
	return out, nil
}

type seedAccount struct {
	Name string
	PIN  string
	Role model.Role
}

type seedPlan struct {
	Family   string
	Timezone string
	Accounts []seedAccount
}

// validate checks everything that can be checked without the database.
func (p seedPlan) validate() error {
	if strings.TrimSpace(p.Family) == "" {
		return errors.New("family name is required")
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("unknown time zone %q: %w", p.Timezone, err)
		}
	}
	for _, a := range p.Accounts {
		if err := auth.ValidatePIN(a.PIN); err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
	}
	return nil
}

// seedFamily creates the family and its accounts in one transaction, so a
// failure leaves nothing behind.
func seedFamily(ctx context.Context, db *database.DB, p seedPlan) (*model.Family, []*model.Account, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	hashes := make([]string, len(p.Accounts))
	for i, a := range p.Accounts {
		hash, err := auth.HashPIN(a.PIN)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		hashes[i] = hash
	}

	var (
		fam   *model.Family
		accts []*model.Account
	)
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		accts = accts[:0]
		var err error
		fam, err = store.NewFamilyStore(db).WithTx(tx).Create(ctx, strings.TrimSpace(p.Family), p.Timezone)
		if err != nil {
			return err
		}
		accounts := store.NewAccountStore(db).WithTx(tx)
		for i, a := range p.Accounts {
			acct, err := accounts.Create(ctx, fam.ID, a.Name, a.Role, hashes[i])
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name, err)
			}
			accts = append(accts, acct)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fam, accts, nil
}
