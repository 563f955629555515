// seed registers development terminals for a sample merchant and, given a private key, prints
// caller tokens for each role. Idempotent: devices that already exist are skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/config"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/db"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
	devicerepo "github.com/thependalorian/ketchup-smartpay-sub006/internal/device/repository"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
)

const devMerchantID = "M-DEV-001"

var devDevices = []domain.Device{
	{ID: "dev-pos-1", MerchantID: devMerchantID, Channel: "POS", Label: "Front till"},
	{ID: "dev-atm-1", MerchantID: devMerchantID, Channel: "ATM", Label: "Lobby ATM"},
	{ID: "dev-ussd-gw", MerchantID: devMerchantID, Channel: "USSD", Label: "USSD gateway"},
	{ID: "dev-app-1", MerchantID: devMerchantID, Channel: "APP", Label: "Wallet app install"},
}

func main() {
	privateKey := flag.String("jwt-private-key", "", "PEM or path of the key that signs dev caller tokens; empty skips token output")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of printed caller tokens")
	flag.Parse()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.OpenContext(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	repo := devicerepo.NewPostgresRepository(database)
	for i := range devDevices {
		d := devDevices[i]
		d.CreatedAt = time.Now().UTC()
		err := repo.Create(ctx, &d)
		switch {
		case errors.Is(err, devicerepo.ErrDuplicateID):
			log.Printf("seed: device %s already registered", d.ID)
		case err != nil:
			log.Fatalf("seed: create device %s: %v", d.ID, err)
		default:
			log.Printf("seed: registered %s device %s", d.Channel, d.ID)
		}
	}

	if *privateKey == "" {
		return
	}
	signer, err := security.ParsePrivateKey(*privateKey)
	if err != nil {
		log.Fatalf("seed: private key: %v", err)
	}
	provider := security.NewTokenProvider(signer, signer.Public(), cfg.JWTIssuer, cfg.JWTAudience)
	callers := []security.Caller{
		{Subject: "dev-merchant", MerchantID: devMerchantID, Role: security.RoleMerchant},
		{Subject: "dev-acquirer", Role: security.RoleAcquirer},
		{Subject: "dev-operator", Role: security.RoleOperator},
	}
	for _, c := range callers {
		token, exp, err := provider.Issue(c, *ttl)
		if err != nil {
			log.Fatalf("seed: issue %s token: %v", c.Role, err)
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\texpires %s\n", c.Role, token, exp.Format(time.RFC3339))
	}
}
