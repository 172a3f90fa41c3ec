package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminJWTClaims mirrors the claims the backend issues on admin login.
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Generates an admin session token for testing the backoffice routes
// without going through the TOTP login flow.
func main() {
	username := flag.String("username", "admin", "admin username to embed in the token")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		secret = "moveregistry-admin-jwt-secret-change-me"
		fmt.Println("WARNING: ADMIN_JWT_SECRET not set, using the default development secret")
	}

	now := time.Now()
	claims := AdminJWTClaims{
		Username: *username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "moveregistry-admin",
			Subject:   *username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Admin token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("Expires: %s\n", claims.ExpiresAt.Time)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/admin/attempts/unfinished\n", tokenString)
}
