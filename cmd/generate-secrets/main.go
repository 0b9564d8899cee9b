package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/safarmate/transit-backend/internal/utils"
)

func main() {
	withAdmin := flag.Bool("admin", false, "also print a bootstrap ADMIN_PASSWORD")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for SafarMate")
	fmt.Println("===========================================")
	fmt.Println()

	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)

	if *withAdmin {
		password, err := utils.GeneratePassword()
		if err != nil {
			log.Fatalf("Failed to generate admin password: %v", err)
		}
		fmt.Printf("ADMIN_PASSWORD=%s\n", password)
	}

	fmt.Println()
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
