// Command token prints signed credentials for the achievements service,
// using the secret key and token validity of the server configuration.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/achievements/internal/flagx"
	"github.com/dmitrijs2005/achievements/internal/server/auth"
	"github.com/dmitrijs2005/achievements/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	var userID, scope string
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	fs.StringVar(&userID, "user", "", "user id")
	fs.StringVar(&scope, "scope", string(auth.ScopeUser), "scope: admin, company, team or user")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-user", "-scope"}))

	if userID == "" {
		log.Printf("-user is required")
		os.Exit(2)
	}

	token, err := auth.GenerateToken(auth.Credentials{UserID: userID, Scope: auth.Scope(scope)}, []byte(cfg.SecretKey), cfg.TokenValidity)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	fmt.Println(token)

}
