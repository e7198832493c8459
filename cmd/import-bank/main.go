package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/database"
	"github.com/stemsi/quizspin-backend/internal/logger"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/repository"
)

func main() {
	var (
		file string
		url  string
	)
	flag.StringVar(&file, "file", "", "Path to a bank JSON file (defaults to BANK_FILE)")
	flag.StringVar(&url, "url", "", "Fetch the bank from this URL instead of a file")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// ─── Read Bank ─────────────────────────────────────────────────────
	var src repository.BankSource
	switch {
	case url != "":
		src = repository.NewHTTPBankSource(url, cfg.BankFetchTimeout)
	case file != "":
		src = repository.NewFileBankSource(file)
	default:
		src = repository.NewFileBankSource(cfg.BankFile)
	}

	bank, err := src.LoadBank(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("source", src.Name()).Msg("Failed to read bank")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	repo := repository.NewQuestionRepository(pool)

	fmt.Println("=== Importing Question Bank ===")
	printSummary(bank.Summarize())

	n, err := repo.ReplaceAll(ctx, bank)
	if err != nil {
		log.Error().Err(err).Msg("Import failed, table left unchanged")
		os.Exit(1)
	}
	fmt.Printf("Imported %d questions\n", n)
}

func printSummary(s model.BankSummary) {
	cats := make([]string, 0, len(s.PoolSizes))
	for cat := range s.PoolSizes {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		fmt.Printf("  %-24s", cat)
		for _, d := range model.Difficulties {
			fmt.Printf(" %s=%d", d, s.PoolSizes[cat][d])
		}
		fmt.Println()
	}
}
