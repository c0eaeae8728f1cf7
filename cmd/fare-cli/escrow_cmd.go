package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

var escrowRPCCall = callEscrowRPC

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}

	switch args[0] {
	case "create":
		return runEscrowCreate(args[1:], stdout, stderr)
	case "fund":
		return runEscrowFund(args[1:], stdout, stderr)
	case "approve-release":
		return runEscrowActor(args[1:], stdout, stderr, "escrow_approveRelease", "approve-release")
	case "refund":
		return runEscrowActor(args[1:], stdout, stderr, "escrow_refund", "refund")
	case "auto-release":
		return runEscrowTimed(args[1:], stdout, stderr, "escrow_autoRelease", "auto-release")
	case "auto-refund":
		return runEscrowTimed(args[1:], stdout, stderr, "escrow_autoRefund", "auto-refund")
	case "get":
		return runEscrowTimed(args[1:], stdout, stderr, "escrow_get", "get")
	case "events":
		return runEscrowEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func escrowUsage() string {
	return `Usage: fare-cli escrow <create|fund|approve-release|refund|auto-release|auto-refund|get|events> [flags]`
}

func newEscrowFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printEscrowError(stderr io.Writer, message string) int {
	fmt.Fprintf(stderr, "Error: %s\n", message)
	return 1
}

func runEscrowCreate(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow create", stderr)
	var (
		payer       string
		payee       string
		feeBps      uint
		releaseSecs int64
		refundSecs  int64
		rideID      string
	)
	fs.StringVar(&payer, "payer", "", "payer bech32 address")
	fs.StringVar(&payee, "payee", "", "payee bech32 address")
	fs.UintVar(&feeBps, "fee-bps", 500, "platform fee in basis points")
	fs.Int64Var(&releaseSecs, "release-deadline", 3600, "auto-release deadline in seconds after funding")
	fs.Int64Var(&refundSecs, "refund-deadline", 7200, "auto-refund deadline in seconds after funding")
	fs.StringVar(&rideID, "ride-id", "", "opaque ride identifier (random UUID when omitted)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if payer == "" {
		return printEscrowError(stderr, "--payer is required")
	}
	if payee == "" {
		return printEscrowError(stderr, "--payee is required")
	}
	if rideID == "" {
		rideID = uuid.NewString()
		fmt.Fprintf(stdout, "rideId: %s\n", rideID)
	}
	params := map[string]interface{}{
		"payer":           payer,
		"payee":           payee,
		"feeBps":          feeBps,
		"releaseDeadline": releaseSecs,
		"refundDeadline":  refundSecs,
		"rideId":          rideID,
	}
	return escrowRPCCall(stdout, stderr, "escrow_create", params)
}

func runEscrowFund(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow fund", stderr)
	var id, from, amount string
	fs.StringVar(&id, "id", "", "escrow identifier (hex)")
	fs.StringVar(&from, "from", "", "payer bech32 address")
	fs.StringVar(&amount, "amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" || from == "" || amount == "" {
		return printEscrowError(stderr, "--id, --from and --amount are required")
	}
	params := map[string]string{"id": id, "from": from, "amount": amount}
	return escrowRPCCall(stdout, stderr, "escrow_fund", params)
}

func runEscrowActor(args []string, stdout, stderr io.Writer, method, name string) int {
	fs := newEscrowFlagSet("escrow "+name, stderr)
	var id, caller string
	fs.StringVar(&id, "id", "", "escrow identifier (hex)")
	fs.StringVar(&caller, "caller", "", "caller bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" || caller == "" {
		return printEscrowError(stderr, "--id and --caller are required")
	}
	params := map[string]string{"id": id, "caller": caller}
	return escrowRPCCall(stdout, stderr, method, params)
}

func runEscrowTimed(args []string, stdout, stderr io.Writer, method, name string) int {
	fs := newEscrowFlagSet("escrow "+name, stderr)
	var id string
	fs.StringVar(&id, "id", "", "escrow identifier (hex)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" {
		return printEscrowError(stderr, "--id is required")
	}
	params := map[string]string{"id": id}
	return escrowRPCCall(stdout, stderr, method, params)
}

func runEscrowEvents(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow events", stderr)
	var after uint64
	fs.Uint64Var(&after, "after", 0, "replay events after this sequence number")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]uint64{"after": after}
	return escrowRPCCall(stdout, stderr, "escrow_events", params)
}

func callEscrowRPC(stdout, stderr io.Writer, method string, params interface{}) int {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	})
	if err != nil {
		return printEscrowError(stderr, err.Error())
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return printEscrowError(stderr, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcAuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return printEscrowError(stderr, err.Error())
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return printEscrowError(stderr, fmt.Sprintf("decode response: %v", err))
	}
	if decoded.Error != nil {
		fmt.Fprintf(stderr, "RPC error %d: %s", decoded.Error.Code, decoded.Error.Message)
		if len(decoded.Error.Data) > 0 {
			fmt.Fprintf(stderr, " (%s)", string(decoded.Error.Data))
		}
		fmt.Fprintln(stderr)
		return 1
	}
	pretty := &bytes.Buffer{}
	if err := json.Indent(pretty, decoded.Result, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(decoded.Result))
		return 0
	}
	fmt.Fprintln(stdout, pretty.String())
	return 0
}
