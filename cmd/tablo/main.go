package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/MeKo-Tech/tablo/cmd/tablo/cmd"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := fang.Execute(context.Background(), cmd.GetRootCommand()); err != nil {
		os.Exit(1)
	}
}
