// nftstake is the command line client for the staking daemon.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	rpcFlag = cli.StringFlag{
		Name:   "rpc",
		Value:  "http://127.0.0.1:8899",
		EnvVar: "NFTSTAKE_RPC",
		Usage:  "JSON-RPC endpoint of stakingd",
	}
	configFlag = cli.StringFlag{
		Name:   "config",
		EnvVar: "NFTSTAKE_CONFIG",
		Usage:  "stakingd TOML file whose [staking] section supplies deployment defaults",
	}
	keypairFlag = cli.StringFlag{
		Name:   "keypair",
		Value:  defaultKeypairPath(),
		EnvVar: "NFTSTAKE_KEYPAIR",
		Usage:  "signer keypair file (solana-keygen JSON format)",
	}

	rewardMintFlag = cli.StringFlag{Name: "reward-mint", Usage: "reward token mint address, defaults to staking.RewardMint"}
	mintFlag       = cli.StringFlag{Name: "mint", Usage: "mint address"}
	poolFlag       = cli.StringFlag{Name: "pool", Usage: "user pool address"}
	ownerFlag      = cli.StringFlag{Name: "owner", Usage: "owner address, defaults to the signer"}
	accountFlag    = cli.StringFlag{Name: "account", Usage: "token account address"}
	ratesFlag      = cli.StringFlag{Name: "rates", Usage: "reward units per second for active,passive-7d,passive-30d, defaults to staking.RewardRates"}
	locksFlag      = cli.StringFlag{Name: "locks", Usage: "lock periods in seconds for active,passive-7d,passive-30d, defaults to staking.LockPeriodSeconds"}
)

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "nftstake", "id.json")
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nftstake"
	app.Usage = "Manage NFT staking pools"
	app.Flags = []cli.Flag{rpcFlag, keypairFlag, configFlag}
	app.Commands = []cli.Command{
		{
			Name:  "keygen",
			Usage: "Generate a new signer keypair",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out", Usage: "output path, defaults to --keypair"},
				cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
			},
			Action: keygenAction,
		},
		{
			Name:   "address",
			Usage:  "Print the signer address",
			Action: addressAction,
		},
		{
			Name:   "airdrop",
			Usage:  "Request lamports from the development faucet",
			Flags:  []cli.Flag{ownerFlag, cli.Uint64Flag{Name: "lamports", Usage: "amount, zero for the faucet default"}},
			Action: airdropAction,
		},
		{
			Name:  "create-mint",
			Usage: "Create a token mint with the signer as mint authority",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "decimals", Value: 0, Usage: "token decimals, zero for NFTs"},
			},
			Action: createMintAction,
		},
		{
			Name:   "create-token-account",
			Usage:  "Create a token account for a mint",
			Flags:  []cli.Flag{mintFlag, ownerFlag},
			Action: createTokenAccountAction,
		},
		{
			Name:  "mint-to",
			Usage: "Mint tokens into an account; the signer must be the mint authority",
			Flags: []cli.Flag{
				mintFlag,
				accountFlag,
				cli.Uint64Flag{Name: "amount", Value: 1, Usage: "base units to mint"},
			},
			Action: mintToAction,
		},
		{
			Name:   "initialize",
			Usage:  "Create the global authority and reward vault",
			Flags:  []cli.Flag{rewardMintFlag, ratesFlag, locksFlag},
			Action: initializeAction,
		},
		{
			Name:  "init-pool",
			Usage: "Create a user pool owned by the signer",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "mode", Value: "active", Usage: "active|passive-7d|passive-30d"},
				cli.UintFlag{Name: "capacity", Usage: "number of slots, defaults to staking.PoolCapacity"},
				cli.StringFlag{Name: "discriminator", Usage: "pool discriminator, random when empty"},
			},
			Action: initPoolAction,
		},
		{
			Name:  "stake",
			Usage: "Stake one NFT into a pool",
			Flags: []cli.Flag{
				poolFlag,
				mintFlag,
				accountFlag,
				cli.IntFlag{Name: "slot", Value: -1, Usage: "slot index, first empty slot when negative"},
			},
			Action: stakeAction,
		},
		{
			Name:   "claim",
			Usage:  "Claim accrued rewards into a reward token account",
			Flags:  []cli.Flag{poolFlag, accountFlag},
			Action: claimAction,
		},
		{
			Name:   "unstake",
			Usage:  "Return a staked NFT to a token account",
			Flags:  []cli.Flag{poolFlag, mintFlag, accountFlag},
			Action: unstakeAction,
		},
		{
			Name:   "close-pool",
			Usage:  "Close an empty pool and refund its rent",
			Flags:  []cli.Flag{poolFlag},
			Action: closePoolAction,
		},
		{
			Name:   "set-reward-config",
			Usage:  "Replace reward rates and lock periods (admin only)",
			Flags:  []cli.Flag{ratesFlag, locksFlag},
			Action: setRewardConfigAction,
		},
		{
			Name:      "pool",
			Usage:     "Show a pool, or every pool of --owner",
			ArgsUsage: "[address]",
			Flags:     []cli.Flag{ownerFlag},
			Action:    poolAction,
		},
		{
			Name:   "global",
			Usage:  "Show the global authority",
			Action: globalAction,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
