package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BENZOOgataga/DeepSearch/internal/daemon"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	// Optional .env for DEEPSEARCH_SESSION and friends; absence is fine.
	_ = godotenv.Load()

	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName}),
	)

	app.Run()
}
