/*
Copyright 2024 Flashcart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/flashcart/flashcart"
	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/database"
	"github.com/flashcart/flashcart/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Flashcart represents the CLI application, encapsulating the root Cobra command.
type Flashcart struct {
	cmd *cobra.Command
}

// flashcartInstance holds the Flashcart instance and its configuration.
// This is used to store the runtime instance and configuration globally within the application.
type flashcartInstance struct {
	flashcart *flashcart.Flashcart
	cnf       *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the Flashcart instance before running any command.
func preRun(app *flashcartInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("flashcart.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newFlashcart, err := setupFlashcart(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.flashcart = newFlashcart
		app.cnf = cnf

		return nil
	}
}

// setupFlashcart creates and initializes a new Flashcart instance based on the provided configuration.
func setupFlashcart(cfg *config.Configuration) (*flashcart.Flashcart, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return &flashcart.Flashcart{}, fmt.Errorf("error getting datasource: %v", err)
	}

	newFlashcart, err := flashcart.NewFlashcart(db)
	if err != nil {
		return &flashcart.Flashcart{}, fmt.Errorf("error creating flashcart: %v", err)
	}
	return newFlashcart, nil
}

// NewCLI creates the command-line interface (CLI) for the Flashcart application.
// It sets up the root command and subcommands like serverCommands, workerCommands, and migrateCommands.
func NewCLI() *Flashcart {
	var configFile string
	f := &flashcartInstance{}

	var rootCmd = &cobra.Command{
		Use:   "flashcart",
		Short: "Flash-sale commerce core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./flashcart.json", "Configuration file for flashcart")

	rootCmd.PersistentPreRunE = preRun(f)

	rootCmd.AddCommand(serverCommands(f))
	rootCmd.AddCommand(workerCommands(f))
	rootCmd.AddCommand(migrateCommands(f))
	rootCmd.AddCommand(configCommands())

	return &Flashcart{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Flashcart) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
