// Command token issues a signed bearer token for local use and operations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Domenick1991/flightseats/config"
	"github.com/Domenick1991/flightseats/internal/identity"
)

func main() {
	passengerID := flag.Int64("passenger", 0, "passenger id the token acts as")
	email := flag.String("email", "", "passenger email")
	admin := flag.Bool("admin", false, "grant the admin role")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	provider := identity.NewJWTProvider(cfg.Auth.JWTSecret, identity.DefaultIssuer)
	token, err := provider.Issue(identity.Caller{PassengerID: *passengerID, Email: *email, Admin: *admin}, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
