package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	cli "gopkg.in/urfave/cli.v1"

	"nftstake/config"
	"nftstake/crypto"
	"nftstake/native/staking"
	"nftstake/native/token"
	"nftstake/rpc"
	"nftstake/sdk/stakeclient"
)

const requestTimeout = 30 * time.Second

func newClient(ctx *cli.Context) *stakeclient.Client {
	return stakeclient.New(ctx.GlobalString(rpcFlag.Name))
}

func loadSigner(ctx *cli.Context) (solana.PrivateKey, error) {
	key, err := crypto.LoadKeypair(ctx.GlobalString(keypairFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	return key, nil
}

func requireAddress(ctx *cli.Context, name string) (solana.PublicKey, error) {
	raw := ctx.String(name)
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

// ownerOrSigner resolves --owner, falling back to the signer's address.
func ownerOrSigner(ctx *cli.Context) (solana.PublicKey, error) {
	if ctx.String(ownerFlag.Name) != "" {
		return requireAddress(ctx, ownerFlag.Name)
	}
	key, err := loadSigner(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

// loadDeployment reads the reward mint from the live global authority.
func loadDeployment(c context.Context, client *stakeclient.Client) (*staking.Deployment, error) {
	global, err := client.Global(c)
	if err != nil {
		return nil, fmt.Errorf("fetch global authority: %w", err)
	}
	mint, err := crypto.ParseAddress(global.RewardMint)
	if err != nil {
		return nil, err
	}
	return staking.NewDeployment(mint)
}

// stakingDefaults returns the [staking] section of --config, or the built-in
// defaults when no file is given.
func stakingDefaults(ctx *cli.Context) (config.Staking, error) {
	path := ctx.GlobalString(configFlag.Name)
	if path == "" {
		return config.Default().Staking, nil
	}
	cfg, err := config.Read(path)
	if err != nil {
		return config.Staking{}, err
	}
	return cfg.Staking, nil
}

// rewardConfig merges --rates and --locks over the configured defaults.
func rewardConfig(ctx *cli.Context) (staking.RewardConfig, error) {
	defaults, err := stakingDefaults(ctx)
	if err != nil {
		return staking.RewardConfig{}, err
	}
	cfg, err := defaults.RewardConfig()
	if err != nil {
		return cfg, err
	}
	if raw := ctx.String(ratesFlag.Name); raw != "" {
		if cfg.RewardRates, err = parseRates(raw, len(cfg.RewardRates)); err != nil {
			return cfg, err
		}
	}
	if raw := ctx.String(locksFlag.Name); raw != "" {
		if cfg.LockPeriods, err = parseLocks(raw, len(cfg.LockPeriods)); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func splitList(raw string, want int) ([]string, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", want, raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseRates(raw string, want int) (out [3]uint64, err error) {
	parts, err := splitList(raw, want)
	if err != nil {
		return out, err
	}
	for i, part := range parts {
		if out[i], err = strconv.ParseUint(part, 10, 64); err != nil {
			return out, fmt.Errorf("rate %q: %w", part, err)
		}
	}
	return out, nil
}

func parseLocks(raw string, want int) (out [3]int64, err error) {
	parts, err := splitList(raw, want)
	if err != nil {
		return out, err
	}
	for i, part := range parts {
		if out[i], err = strconv.ParseInt(part, 10, 64); err != nil {
			return out, fmt.Errorf("lock period %q: %w", part, err)
		}
	}
	return out, nil
}

func printJSON(ctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type txOutput struct {
	Signature string            `json:"signature"`
	Sequence  uint64            `json:"sequence"`
	Addresses map[string]string `json:"addresses,omitempty"`
	Logs      []string          `json:"logs,omitempty"`
}

func printReceipt(ctx *cli.Context, receipt *rpc.ReceiptResult, addresses map[string]string) error {
	return printJSON(ctx, txOutput{
		Signature: receipt.Signature,
		Sequence:  receipt.Sequence,
		Addresses: addresses,
		Logs:      receipt.Logs,
	})
}

func keygenAction(ctx *cli.Context) error {
	out := ctx.String("out")
	if out == "" {
		out = ctx.GlobalString(keypairFlag.Name)
	}
	if _, err := os.Stat(out); err == nil && !ctx.Bool("force") {
		return fmt.Errorf("%s already exists, pass --force to overwrite", out)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveKeypair(out, key); err != nil {
		return err
	}
	return printJSON(ctx, map[string]string{"address": key.PublicKey().String(), "path": out})
}

func addressAction(ctx *cli.Context) error {
	key, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, key.PublicKey().String())
	return err
}

func airdropAction(ctx *cli.Context) error {
	owner, err := ownerOrSigner(ctx)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	receipt, err := newClient(ctx).RequestAirdrop(c, owner, ctx.Uint64("lamports"))
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func createMintAction(ctx *cli.Context) error {
	payer, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	decimals := ctx.Uint("decimals")
	if decimals > 255 {
		return fmt.Errorf("--decimals %d out of range", decimals)
	}
	mint, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ixs := token.CreateMintInstructions(payer.PublicKey(), mint.PublicKey(), payer.PublicKey(), uint8(decimals))
	receipt, err := newClient(ctx).SignAndSend(c, payer, []solana.PrivateKey{mint}, ixs...)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, map[string]string{"mint": mint.PublicKey().String()})
}

func createTokenAccountAction(ctx *cli.Context) error {
	payer, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	mint, err := requireAddress(ctx, mintFlag.Name)
	if err != nil {
		return err
	}
	owner := payer.PublicKey()
	if ctx.String(ownerFlag.Name) != "" {
		if owner, err = requireAddress(ctx, ownerFlag.Name); err != nil {
			return err
		}
	}
	account, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ixs := token.CreateTokenAccountInstructions(payer.PublicKey(), account.PublicKey(), mint, owner)
	receipt, err := newClient(ctx).SignAndSend(c, payer, []solana.PrivateKey{account}, ixs...)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, map[string]string{"account": account.PublicKey().String()})
}

func mintToAction(ctx *cli.Context) error {
	authority, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	mint, err := requireAddress(ctx, mintFlag.Name)
	if err != nil {
		return err
	}
	account, err := requireAddress(ctx, accountFlag.Name)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ix := token.NewMintToInstruction(mint, account, authority.PublicKey(), ctx.Uint64("amount"))
	receipt, err := newClient(ctx).SignAndSend(c, authority, nil, ix)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func initializeAction(ctx *cli.Context) error {
	admin, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	var rewardMint solana.PublicKey
	if ctx.String(rewardMintFlag.Name) != "" {
		if rewardMint, err = requireAddress(ctx, rewardMintFlag.Name); err != nil {
			return err
		}
	} else {
		defaults, err := stakingDefaults(ctx)
		if err != nil {
			return err
		}
		mint, ok, err := defaults.RewardMintAddress()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("--%s is required when staking.RewardMint is not configured", rewardMintFlag.Name)
		}
		rewardMint = mint
	}
	cfg, err := rewardConfig(ctx)
	if err != nil {
		return err
	}
	deployment, err := staking.NewDeployment(rewardMint)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	receipt, err := newClient(ctx).SignAndSend(c, admin, nil, deployment.Initialize(admin.PublicKey(), cfg))
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, map[string]string{
		"global":      deployment.Global.String(),
		"rewardVault": deployment.RewardVault.String(),
	})
}

func initPoolAction(ctx *cli.Context) error {
	owner, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	mode, err := staking.ParseStakeMode(ctx.String("mode"))
	if err != nil {
		return err
	}
	capacity := ctx.Uint("capacity")
	if capacity == 0 {
		defaults, err := stakingDefaults(ctx)
		if err != nil {
			return err
		}
		capacity = uint(defaults.PoolCapacity)
	}
	if capacity > staking.MaxPoolCapacity {
		return fmt.Errorf("--capacity %d exceeds %d", capacity, staking.MaxPoolCapacity)
	}
	discriminator := solana.NewWallet().PublicKey()
	if ctx.String("discriminator") != "" {
		if discriminator, err = requireAddress(ctx, "discriminator"); err != nil {
			return err
		}
	}
	deployment, err := staking.NewDeployment(solana.PublicKey{})
	if err != nil {
		return err
	}
	ix, pool, err := deployment.InitUserPool(owner.PublicKey(), discriminator, mode, uint8(capacity))
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	receipt, err := newClient(ctx).SignAndSend(c, owner, nil, ix)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, map[string]string{
		"pool":          pool.String(),
		"discriminator": discriminator.String(),
	})
}

func stakeAction(ctx *cli.Context) error {
	owner, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	pool, err := requireAddress(ctx, poolFlag.Name)
	if err != nil {
		return err
	}
	mint, err := requireAddress(ctx, mintFlag.Name)
	if err != nil {
		return err
	}
	source, err := requireAddress(ctx, accountFlag.Name)
	if err != nil {
		return err
	}
	slot := staking.AnySlot
	if idx := ctx.Int("slot"); idx >= 0 {
		if idx >= staking.MaxPoolCapacity {
			return fmt.Errorf("--slot %d out of range", idx)
		}
		slot = uint8(idx)
	}

	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	client := newClient(ctx)
	deployment, err := loadDeployment(c, client)
	if err != nil {
		return err
	}
	ix, err := deployment.StakeNft(owner.PublicKey(), pool, source, mint, slot)
	if err != nil {
		return err
	}
	receipt, err := client.SignAndSend(c, owner, nil, ix)
	if err != nil {
		return err
	}
	escrow, _, err := staking.EscrowAddress(mint)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, map[string]string{"escrow": escrow.String()})
}

func claimAction(ctx *cli.Context) error {
	owner, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	pool, err := requireAddress(ctx, poolFlag.Name)
	if err != nil {
		return err
	}
	dest, err := requireAddress(ctx, accountFlag.Name)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	client := newClient(ctx)
	deployment, err := loadDeployment(c, client)
	if err != nil {
		return err
	}
	receipt, err := client.SignAndSend(c, owner, nil, deployment.ClaimReward(owner.PublicKey(), pool, dest))
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func unstakeAction(ctx *cli.Context) error {
	owner, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	pool, err := requireAddress(ctx, poolFlag.Name)
	if err != nil {
		return err
	}
	mint, err := requireAddress(ctx, mintFlag.Name)
	if err != nil {
		return err
	}
	dest, err := requireAddress(ctx, accountFlag.Name)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	client := newClient(ctx)
	deployment, err := loadDeployment(c, client)
	if err != nil {
		return err
	}
	ix, err := deployment.UnstakeNft(owner.PublicKey(), pool, dest, mint)
	if err != nil {
		return err
	}
	receipt, err := client.SignAndSend(c, owner, nil, ix)
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func closePoolAction(ctx *cli.Context) error {
	owner, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	pool, err := requireAddress(ctx, poolFlag.Name)
	if err != nil {
		return err
	}
	deployment, err := staking.NewDeployment(solana.PublicKey{})
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	receipt, err := newClient(ctx).SignAndSend(c, owner, nil, deployment.CloseUserPool(owner.PublicKey(), pool))
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func setRewardConfigAction(ctx *cli.Context) error {
	admin, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	cfg, err := rewardConfig(ctx)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	client := newClient(ctx)
	deployment, err := loadDeployment(c, client)
	if err != nil {
		return err
	}
	receipt, err := client.SignAndSend(c, admin, nil, deployment.SetRewardConfig(admin.PublicKey(), cfg))
	if err != nil {
		return err
	}
	return printReceipt(ctx, receipt, nil)
}

func poolAction(ctx *cli.Context) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	client := newClient(ctx)
	if ctx.NArg() > 0 {
		addr, err := crypto.ParseAddress(ctx.Args().First())
		if err != nil {
			return err
		}
		pool, err := client.Pool(c, addr)
		if err != nil {
			return err
		}
		return printJSON(ctx, pool)
	}
	owner, err := ownerOrSigner(ctx)
	if err != nil {
		return err
	}
	pools, err := client.ListPools(c, owner)
	if err != nil {
		return err
	}
	return printJSON(ctx, pools)
}

func globalAction(ctx *cli.Context) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	global, err := newClient(ctx).Global(c)
	if err != nil {
		return err
	}
	return printJSON(ctx, global)
}
