// poolctl - Command-line interface for interacting with a privacy pool
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ccoin/privacypool/feepolicy"
	"github.com/ccoin/privacypool/groth16verify"
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
	"github.com/ccoin/privacypool/pool"
	"github.com/ccoin/privacypool/storage"
)

// newExecutor wires an Executor against the requested store, loading the
// tree from whatever state it last persisted (merkletree.New replays the
// store's saved state rather than starting fresh, the same way cmdStatus
// and cmdInit's tree opens do).
func newExecutor(ctx context.Context, poolID string, memory bool) (*pool.Executor, func(), error) {
	treeStore, nullStore, configStore, vaultStore, closeFn, err := openStore(ctx, memory)
	if err != nil {
		return nil, nil, err
	}
	tree, err := merkletree.New(ctx, poolID, treeStore)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load tree: %w", err)
	}
	nullregs := nullifier.New(nullStore)
	verifier := groth16verify.New(groth16verify.DefaultVerifyingKey())
	return pool.NewExecutor(poolID, tree, nullregs, verifier, vaultStore, configStore), closeFn, nil
}

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("poolctl v%s\n", version)
	case "help":
		printUsage()
	case "init":
		cmdInit(os.Args[2:])
	case "deposit":
		cmdDeposit(os.Args[2:])
	case "withdraw":
		cmdWithdraw(os.Args[2:])
	case "transact":
		cmdTransact(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("poolctl - Command-line interface for a privacy pool")
	fmt.Println()
	fmt.Println("Usage: poolctl <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version     Show version information")
	fmt.Println("  help        Show this help message")
	fmt.Println("  init        Initialize a new pool")
	fmt.Println("  deposit     Submit a deposit envelope (--envelope <file.json>)")
	fmt.Println("  withdraw    Submit a withdrawal envelope (--envelope <file.json>)")
	fmt.Println("  transact    Submit a raw transact envelope (--envelope <file.json>)")
	fmt.Println("  status      Show pool status")
	fmt.Println()
	fmt.Println("Envelopes carry the already-built Groth16 proof and public")
	fmt.Println("inputs as hex strings; poolctl never generates a proof itself.")
	fmt.Println()
	fmt.Println("Global flags (all commands): --pool <id>, --memory (use an")
	fmt.Println("in-process store instead of Postgres)")
}

// openStore wires either a storage.MemoryStore or a storage.PostgresStore,
// returning the four interfaces an Executor needs plus a close func.
func openStore(ctx context.Context, memory bool) (merkletree.Store, nullifier.Store, pool.ConfigStore, pool.VaultStore, func(), error) {
	if memory {
		m := storage.NewMemoryStore()
		return m.Trees, m.Nullifiers, m.Configs, m.Vaults, func() {}, nil
	}
	cfg := storage.DefaultConfig()
	s, err := storage.NewPostgresStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return s.Trees(), s, s.Configs(), s, func() { s.Close() }, nil
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	poolID := fs.String("pool", "default", "pool identifier")
	memory := fs.Bool("memory", false, "use an in-process store instead of Postgres")
	maxDeposit := fs.Uint64("max-deposit", 1_000_000_000, "maximum single deposit amount")
	depositFeeBps := fs.Uint("deposit-fee-bps", 0, "deposit fee rate in basis points")
	withdrawFeeBps := fs.Uint("withdraw-fee-bps", 25, "withdrawal fee rate in basis points")
	marginBps := fs.Uint("fee-margin-bps", 500, "fee tolerance margin in basis points")
	fs.Parse(args)

	ctx := context.Background()
	treeStore, _, configStore, vaultStore, closeFn, err := openStore(ctx, *memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	if _, err := merkletree.New(ctx, *poolID, treeStore); err != nil {
		fmt.Fprintf(os.Stderr, "Error: creating tree: %v\n", err)
		os.Exit(1)
	}
	cfg := pool.GlobalConfig{
		MaxDepositAmount: *maxDeposit,
		Fees: feepolicy.Config{
			DepositFeeRateBps:    uint16(*depositFeeBps),
			WithdrawalFeeRateBps: uint16(*withdrawFeeBps),
			FeeErrorMarginBps:    uint16(*marginBps),
		},
	}
	if err := configStore.Save(ctx, *poolID, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: saving config: %v\n", err)
		os.Exit(1)
	}
	if err := vaultStore.SetBalance(ctx, *poolID, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Error: initializing vault: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pool %q initialized. max_deposit=%d deposit_fee_bps=%d withdraw_fee_bps=%d\n",
		*poolID, *maxDeposit, *depositFeeBps, *withdrawFeeBps)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	poolID := fs.String("pool", "default", "pool identifier")
	memory := fs.Bool("memory", false, "use an in-process store instead of Postgres")
	fs.Parse(args)

	ctx := context.Background()
	treeStore, _, configStore, vaultStore, closeFn, err := openStore(ctx, *memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	tree, err := merkletree.New(ctx, *poolID, treeStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading tree: %v\n", err)
		os.Exit(1)
	}
	cfg, ok, err := configStore.Load(ctx, *poolID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Printf("Pool %q is not initialized.\n", *poolID)
		return
	}
	balance, err := vaultStore.Balance(ctx, *poolID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading vault balance: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Pool Status:")
	fmt.Printf("  Pool ID:            %s\n", *poolID)
	fmt.Printf("  Next leaf index:    %d\n", tree.NextIndex())
	fmt.Printf("  Max deposit amount: %d\n", cfg.MaxDepositAmount)
	fmt.Printf("  Deposit fee (bps):  %d\n", cfg.Fees.DepositFeeRateBps)
	fmt.Printf("  Withdraw fee (bps): %d\n", cfg.Fees.WithdrawalFeeRateBps)
	fmt.Printf("  Fee margin (bps):   %d\n", cfg.Fees.FeeErrorMarginBps)
	fmt.Printf("  Vault balance:      %d\n", balance)
}

func printReceipt(r *pool.Receipt) {
	fmt.Println("Accepted.")
	fmt.Printf("  Leaf index: %d\n", r.Event.LeafIndex)
	fmt.Printf("  New root:   %x\n", r.Event.NewRoot.Encode())
	fmt.Printf("  Ext amount: %d\n", r.Event.ExtAmount)
	fmt.Printf("  Fee:        %d\n", r.Event.Fee)
	fmt.Printf("  Balance:    %d\n", r.Balance)
}

func cmdDeposit(args []string) {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	poolID := fs.String("pool", "default", "pool identifier")
	memory := fs.Bool("memory", false, "use an in-process store instead of Postgres")
	envelopePath := fs.String("envelope", "", "path to a deposit envelope JSON file")
	fs.Parse(args)
	if *envelopePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --envelope is required")
		os.Exit(1)
	}

	ix, err := readDepositEnvelope(*envelopePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading envelope: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	exec, closeFn, err := newExecutor(ctx, *poolID, *memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: deposit rejected: %v\n", err)
		os.Exit(1)
	}
	printReceipt(receipt)
}

func cmdWithdraw(args []string) {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	poolID := fs.String("pool", "default", "pool identifier")
	memory := fs.Bool("memory", false, "use an in-process store instead of Postgres")
	envelopePath := fs.String("envelope", "", "path to a withdrawal envelope JSON file")
	fs.Parse(args)
	if *envelopePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --envelope is required")
		os.Exit(1)
	}

	ix, err := readWithdrawEnvelope(*envelopePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading envelope: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	exec, closeFn, err := newExecutor(ctx, *poolID, *memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: withdrawal rejected: %v\n", err)
		os.Exit(1)
	}
	printReceipt(receipt)
}

func cmdTransact(args []string) {
	fs := flag.NewFlagSet("transact", flag.ExitOnError)
	poolID := fs.String("pool", "default", "pool identifier")
	memory := fs.Bool("memory", false, "use an in-process store instead of Postgres")
	envelopePath := fs.String("envelope", "", "path to a transact envelope JSON file")
	fs.Parse(args)
	if *envelopePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --envelope is required")
		os.Exit(1)
	}

	ix, err := readTransactEnvelope(*envelopePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading envelope: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	exec, closeFn, err := newExecutor(ctx, *poolID, *memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: transact rejected: %v\n", err)
		os.Exit(1)
	}
	printReceipt(receipt)
}
