package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	jwt "github.com/golang-jwt/jwt/v5"

	"claimdrop/cmd/internal/passphrase"
	"claimdrop/crypto"
	"claimdrop/native/airdrop"
	"claimdrop/services/claimd/store"
)

const passphraseEnv = "CLAIMCTL_PASSPHRASE"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "claimctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errors.New("command required")
	}
	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return keygen(rest, out)
	case "tree":
		return treeRoot(rest, out)
	case "proof":
		return proof(rest, out)
	case "sign":
		return sign(rest, out, passphrase.NewSource(passphraseEnv, "beneficiary keystore"))
	case "token":
		return token(rest, out)
	case "report":
		return report(rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: claimctl <command> [flags]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  keygen -out <file>                      create an encrypted beneficiary key")
	fmt.Fprintln(out, "  tree -allocations <file>                print the allocation root")
	fmt.Fprintln(out, "  proof -allocations <file> -beneficiary  print the proof for one beneficiary")
	fmt.Fprintln(out, "  sign -keystore <file> ...               sign a claim authorization")
	fmt.Fprintln(out, "  token -subject <addr> ...               issue a claimd bearer token")
	fmt.Fprintln(out, "  report -dsn <dsn> -out <dir> ...        export settlements as csv and parquet")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "The keystore passphrase is read from %s or prompted for.\n", passphraseEnv)
}

func writeResult(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "", "keystore file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("keygen: -out required")
	}
	pass, err := passphrase.NewSource(passphraseEnv, "new keystore").WithConfirm().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*path, key, pass, crypto.StandardKeystore); err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	addr := key.Address20()
	return writeResult(out, map[string]string{
		"address":  hexutil.Encode(addr[:]),
		"display":  crypto.Display(addr),
		"keystore": *path,
	})
}

func loadTree(path string) (*airdrop.Tree, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("-allocations required")
	}
	allocations, err := airdrop.LoadAllocations(path)
	if err != nil {
		return nil, err
	}
	return airdrop.BuildTree(allocations)
}

func treeRoot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	path := fs.String("allocations", "", "YAML allocation list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tree, err := loadTree(*path)
	if err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	root := tree.Root()
	return writeResult(out, map[string]any{
		"root":    hexutil.Encode(root[:]),
		"entries": tree.Len(),
	})
}

func proof(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("proof", flag.ContinueOnError)
	path := fs.String("allocations", "", "YAML allocation list")
	beneficiaryRaw := fs.String("beneficiary", "", "beneficiary address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tree, err := loadTree(*path)
	if err != nil {
		return fmt.Errorf("proof: %w", err)
	}
	beneficiary, err := crypto.ParseAddress(*beneficiaryRaw)
	if err != nil {
		return fmt.Errorf("proof: beneficiary: %w", err)
	}
	allocation, ok := tree.Allocation(beneficiary)
	if !ok {
		return fmt.Errorf("proof: no allocation for %s", *beneficiaryRaw)
	}
	nodes, _ := tree.Proof(beneficiary)
	encoded := make([]string, len(nodes))
	for i, node := range nodes {
		encoded[i] = hexutil.Encode(node[:])
	}
	root := tree.Root()
	return writeResult(out, map[string]any{
		"beneficiary":     hexutil.Encode(beneficiary[:]),
		"totalAllocation": allocation.Amount.String(),
		"proof":           encoded,
		"root":            hexutil.Encode(root[:]),
	})
}

type secret interface {
	Get() (string, error)
}

func sign(args []string, out io.Writer, pass secret) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "beneficiary keystore file")
	chainID := fs.Uint64("chain-id", 1, "chain id of the signing domain")
	instanceRaw := fs.String("instance", "", "airdrop instance address")
	allocationRaw := fs.String("allocation", "", "total allocation of the beneficiary")
	optionID := fs.Uint64("option-id", 1, "claim option identifier")
	multiplier := fs.Uint64("multiplier", 0, "live multiplier in bips")
	claimBips := fs.Uint64("claim-bips", airdrop.MaxBips, "percentage to claim in bips")
	stakeBips := fs.Uint64("stake-bips", 0, "percentage to stake in bips")
	lockup := fs.Uint64("lockup", 0, "lockup period in seconds")
	nonceRaw := fs.String("nonce", "", "32 byte hex nonce, random when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	instance, err := crypto.ParseAddress(*instanceRaw)
	if err != nil {
		return fmt.Errorf("sign: instance: %w", err)
	}
	allocation, ok := new(big.Int).SetString(strings.TrimSpace(*allocationRaw), 10)
	if !ok || allocation.Sign() <= 0 {
		return errors.New("sign: -allocation must be a positive integer")
	}
	var nonce [32]byte
	if strings.TrimSpace(*nonceRaw) == "" {
		if _, err := rand.Read(nonce[:]); err != nil {
			return err
		}
	} else {
		raw, err := hexutil.Decode(strings.TrimSpace(*nonceRaw))
		if err != nil || len(raw) != len(nonce) {
			return errors.New("sign: -nonce must be 32 bytes of 0x-prefixed hex")
		}
		copy(nonce[:], raw)
	}
	phrase, err := pass.Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, phrase)
	if err != nil {
		return fmt.Errorf("sign: open keystore: %w", err)
	}
	beneficiary := key.Address20()
	opts := airdrop.ClaimOptions{
		OptionID:          *optionID,
		Multiplier:        *multiplier,
		PercentageToClaim: *claimBips,
		PercentageToStake: *stakeBips,
		LockupPeriod:      *lockup,
	}
	digest, err := airdrop.ClaimDigest(new(big.Int).SetUint64(*chainID), instance, beneficiary, allocation, opts, nonce)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	signature, err := key.SignDigest(digest[:])
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	return writeResult(out, map[string]any{
		"beneficiary":     hexutil.Encode(beneficiary[:]),
		"totalAllocation": allocation.String(),
		"options": map[string]uint64{
			"optionId":          opts.OptionID,
			"multiplier":        opts.Multiplier,
			"percentageToClaim": opts.PercentageToClaim,
			"percentageToStake": opts.PercentageToStake,
			"lockupPeriod":      opts.LockupPeriod,
		},
		"nonce":     hexutil.Encode(nonce[:]),
		"digest":    hexutil.Encode(digest[:]),
		"signature": hexutil.Encode(signature),
	})
}

func token(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "caller address carried in the token")
	secretEnv := fs.String("secret-env", "CLAIMD_JWT_SECRET", "environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := crypto.ParseAddress(*subject); err != nil {
		return fmt.Errorf("token: subject: %w", err)
	}
	hmacSecret := strings.TrimSpace(os.Getenv(*secretEnv))
	if hmacSecret == "" {
		return fmt.Errorf("token: %s is not set", *secretEnv)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.TrimSpace(*subject),
		Issuer:    strings.TrimSpace(*issuer),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	}
	if aud := strings.TrimSpace(*audience); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(hmacSecret))
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	return writeResult(out, map[string]string{"token": signed, "expiresAt": claims.ExpiresAt.Time.UTC().Format(time.RFC3339)})
}

func parseWindowBound(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

func report(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "settlement store DSN")
	instance := fs.String("instance", "", "restrict to one instance address")
	fromRaw := fs.String("from", "", "window start (RFC3339), inclusive")
	toRaw := fs.String("to", "", "window end (RFC3339), exclusive")
	dir := fs.String("out", ".", "output directory")
	name := fs.String("name", "settlements", "base file name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, err := parseWindowBound(*fromRaw)
	if err != nil {
		return fmt.Errorf("report: -from: %w", err)
	}
	to, err := parseWindowBound(*toRaw)
	if err != nil {
		return fmt.Errorf("report: -to: %w", err)
	}
	if !to.IsZero() && !to.After(from) {
		return errors.New("report: -to must be after -from")
	}
	instanceFilter := ""
	if strings.TrimSpace(*instance) != "" {
		addr, err := crypto.ParseAddress(*instance)
		if err != nil {
			return fmt.Errorf("report: instance: %w", err)
		}
		instanceFilter = hexutil.Encode(addr[:])
	}

	settlements, err := store.Open(*dsn)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer settlements.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	rows, err := settlements.Window(ctx, instanceFilter, from, to)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	written, err := store.WriteReport(*dir, *name, rows)
	if err != nil {
		return err
	}
	return writeResult(out, written)
}
