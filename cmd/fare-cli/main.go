package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"fareledger/crypto"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("FARE_RPC_TOKEN")

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("FARE_RPC_URL")); url != "" {
		return url
	}
	return "http://localhost:8645"
}

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		generateKey()
	case "address":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a key file.")
			printUsage()
			return
		}
		printAddress(args[1])
	case "escrow":
		os.Exit(runEscrowCommand(args[1:], os.Stdout, os.Stderr))
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: fare-cli <command> [args]

Commands:
  generate-key               Generate a new keypair and write it to wallet.key
  address <key-file>         Print the bech32 address for a key file
  escrow <subcommand>        Escrow operations (create, fund, approve-release,
                             refund, auto-release, auto-refund, get, events)

Environment:
  FARE_RPC_URL               JSON-RPC endpoint (default http://localhost:8645)
  FARE_RPC_TOKEN             Bearer token for write operations`)
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}
	encoded := hex.EncodeToString(key.Bytes())
	if err := os.WriteFile("wallet.key", []byte(encoded+"\n"), 0o600); err != nil {
		fmt.Printf("Error writing key file: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("New key written to wallet.key")
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
}

func printAddress(path string) {
	key, err := loadKey(path)
	if err != nil {
		fmt.Printf("Error loading key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key.PubKey().Address().String())
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file must contain hex: %w", err)
	}
	return crypto.PrivateKeyFromBytes(decoded)
}
