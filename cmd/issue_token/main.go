// issue_token prints a bearer token for the trigger endpoints, or the bcrypt
// hash of an API key for API_KEY_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/xelth-com/arcasync/internal/utils"
)

func main() {
	subject := flag.String("subject", "scheduler", "token subject, recorded with each run")
	ttl := flag.Duration("ttl", 0, "token lifetime, 0 = no expiry")
	apiKey := flag.String("hash-key", "", "print the bcrypt hash of this API key instead")
	flag.Parse()

	_ = godotenv.Load()

	if *apiKey != "" {
		hash, err := utils.HashPassword(*apiKey)
		if err != nil {
			log.Fatalf("Failed to hash key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	token, err := utils.GenerateTriggerToken(*subject, *ttl, secret)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
	if *ttl > 0 {
		fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	}
}
