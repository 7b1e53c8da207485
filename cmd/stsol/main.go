// Package main provides stsol, an operator CLI for staking SOL into Lido
// for Solana from a keypair file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"solido-stake/internal/lidoapi"
	"solido-stake/internal/solana"
	"solido-stake/internal/solido"
	"solido-stake/internal/wallet"
)

var logger = log.New(os.Stderr, "[stsol] ", log.LstdFlags)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("Failed to load .env: %v", err)
	}

	app := &cli.App{
		Name:  "stsol",
		Usage: "stake SOL for stSOL and manage stake claim accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc",
				Usage:   "Solana RPC HTTP endpoint",
				Value:   "https://api.mainnet-beta.solana.com",
				EnvVars: []string{"SOLANA_RPC_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "ws",
				Usage:   "Solana WebSocket endpoint for confirmations (polls when empty)",
				EnvVars: []string{"SOLANA_WS_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "path to the owner's keypair file",
				Value:   defaultKeypairPath(),
				EnvVars: []string{"SOLANA_KEYPAIR"},
			},
			&cli.StringFlag{
				Name:    "program-id",
				Value:   solido.MainnetAddresses.ProgramID.String(),
				EnvVars: []string{"SOLIDO_PROGRAM_ID"},
			},
			&cli.StringFlag{
				Name:    "instance-id",
				Value:   solido.MainnetAddresses.InstanceID.String(),
				EnvVars: []string{"SOLIDO_INSTANCE_ID"},
			},
			&cli.StringFlag{
				Name:    "stsol-mint",
				Value:   solido.MainnetAddresses.StSolMint.String(),
				EnvVars: []string{"STSOL_MINT"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "journal submitted operations to PostgreSQL",
				EnvVars: []string{"POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "stats-url",
				Usage:   "off-chain statistics endpoint (empty disables)",
				Value:   lidoapi.DefaultStatsURL,
				EnvVars: []string{"LIDO_STATS_URL"},
			},
			&cli.DurationFlag{
				Name:    "confirm-timeout",
				Usage:   "how long to wait for confirmation (0 returns after broadcast)",
				Value:   wallet.DefaultConfig().ConfirmTimeout,
				EnvVars: []string{"CONFIRM_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Value:   solana.DefaultMaxRetries,
				EnvVars: []string{"RPC_MAX_RETRIES"},
			},
			&cli.DurationFlag{
				Name:    "rpc-timeout",
				Value:   30 * time.Second,
				EnvVars: []string{"RPC_TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "stake",
				Usage:  "deposit SOL and receive stSOL",
				Flags:  []cli.Flag{amountFlag("SOL to deposit")},
				Action: stakeAction,
			},
			{
				Name:   "unstake",
				Usage:  "redeem stSOL into a deactivating stake claim account",
				Flags:  []cli.Flag{amountFlag("stSOL to redeem")},
				Action: unstakeAction,
			},
			{
				Name:  "withdraw",
				Usage: "withdraw an inactive stake claim account to the wallet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "stake claim account address", Required: true},
				},
				Action: withdrawAction,
			},
			{
				Name:   "positions",
				Usage:  "list stake claim accounts withdrawable by the wallet",
				Flags:  []cli.Flag{ownerFlag()},
				Action: positionsAction,
			},
			{
				Name:   "quote",
				Usage:  "estimate stSOL received for a deposit",
				Flags:  []cli.Flag{amountFlag("SOL to deposit")},
				Action: quoteAction,
			},
			{
				Name:   "stats",
				Usage:  "show protocol statistics",
				Action: statsAction,
			},
			{
				Name:  "history",
				Usage: "list journaled operations of the wallet",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: historyAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Fatal(err)
	}
}

func amountFlag(usage string) cli.Flag {
	return &cli.StringFlag{Name: "amount", Usage: usage, Required: true}
}

func ownerFlag() cli.Flag {
	return &cli.StringFlag{Name: "owner", Usage: "wallet address (defaults to the keypair's)"}
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}
