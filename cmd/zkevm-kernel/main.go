// zkevm-kernel runs a single kernel routine from the command line. It is a
// development harness: it stages prover input, executes the routine, prints
// the result and optionally commits to the execution trace.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"

	"github.com/eth2030/zkevm/kernel"
	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/kernel/tape"
	"github.com/eth2030/zkevm/log"
	"github.com/eth2030/zkevm/metrics"
	"github.com/eth2030/zkevm/trace"
	"github.com/eth2030/zkevm/types"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("zkevm-kernel", flag.ContinueOnError)

	routine := fs.String("routine", "derive_nonce_address", "Kernel routine to run (read_rlp_to_memory, derive_nonce_address, derive_salt_address)")
	sender := fs.String("sender", "", "Sender address (hex) for address derivation")
	nonce := fs.Uint64("nonce", 0, "Account nonce for nonce-based derivation")
	salt := fs.String("salt", "", "32-byte salt (hex) for salt-based derivation")
	codeHash := fs.String("codehash", "", "32-byte init-code hash (hex) for salt-based derivation")
	payloads := fs.String("payloads", "", "Comma-separated hex payloads to stage on the rlp tape channel")
	maxSteps := fs.Uint64("max-steps", 0, "Instruction budget (0 = default)")
	withTrace := fs.Bool("trace", false, "Record the execution trace and print its size")
	withCommit := fs.Bool("commit", false, "Commit to the trace (implies -trace)")
	logLevel := fs.String("log.level", "info", "Log level: debug, info, warn, error")
	showMetrics := fs.Bool("metrics", false, "Print the metrics snapshot after the run")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if *showVersion {
		fmt.Printf("zkevm-kernel %s (commit %s)\n", version, commit)
		return 0
	}

	logger := log.New(log.ParseLevel(*logLevel))
	log.SetDefault(logger)

	prog, err := kernel.NewKernelProgram()
	if err != nil {
		logger.Error("program assembly failed", "err", err)
		return 1
	}

	tp := tape.New()
	if *payloads != "" {
		staged, err := parsePayloads(*payloads)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		if err := tp.StageRLP(staged); err != nil {
			logger.Error("tape staging failed", "err", err)
			return 1
		}
		logger.Info("staged tape", "payloads", len(staged), "words", tp.Len(tape.ChannelRLP))
	}

	cfg := kernel.DefaultConfig()
	cfg.MaxSteps = *maxSteps
	cfg.Logger = logger
	if *withTrace || *withCommit {
		cfg.Trace = trace.NewLog()
	}

	in := kernel.NewInterpreter(prog, memory.New(), tp, cfg)

	runArgs, err := routineArgs(*routine, *sender, *nonce, *salt, *codeHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if err := in.Run(*routine, runArgs...); err != nil {
		logger.Error("run failed", "routine", *routine, "err", err)
		return 1
	}

	result, err := in.Stack().Pop()
	if err != nil {
		logger.Error("routine left no result", "err", err)
		return 1
	}
	printResult(*routine, &result)
	logger.Info("run complete", "routine", *routine, "steps", in.Steps())

	if cfg.Trace != nil {
		fmt.Printf("trace: %d events, %d bytes serialized\n", cfg.Trace.Len(), len(trace.Serialize(cfg.Trace)))
	}
	if *withCommit {
		committer, err := trace.NewCommitter()
		if err != nil {
			logger.Error("committer setup failed", "err", err)
			return 1
		}
		commitments, err := committer.Commit(cfg.Trace)
		if err != nil {
			logger.Error("trace commitment failed", "err", err)
			return 1
		}
		for i, c := range commitments {
			fmt.Printf("commitment[%d]: %x\n", i, c[:])
		}
	}
	if *showMetrics {
		for name, v := range metrics.DefaultRegistry.Snapshot() {
			fmt.Printf("metric %s = %v\n", name, v)
		}
	}
	return 0
}

// routineArgs maps the flag values onto the stack arguments of the chosen
// entry point.
func routineArgs(routine, sender string, nonce uint64, salt, codeHash string) ([]*uint256.Int, error) {
	switch routine {
	case "read_rlp_to_memory":
		return nil, nil
	case "derive_nonce_address":
		if sender == "" {
			return nil, fmt.Errorf("derive_nonce_address requires -sender")
		}
		return []*uint256.Int{
			wordFromBytes(types.HexToAddress(sender).Bytes()),
			uint256.NewInt(nonce),
		}, nil
	case "derive_salt_address":
		if sender == "" || salt == "" || codeHash == "" {
			return nil, fmt.Errorf("derive_salt_address requires -sender, -salt and -codehash")
		}
		return []*uint256.Int{
			wordFromBytes(types.HexToAddress(sender).Bytes()),
			wordFromBytes(types.HexToHash(codeHash).Bytes()),
			wordFromBytes(types.HexToHash(salt).Bytes()),
		}, nil
	default:
		return nil, fmt.Errorf("unknown routine %q", routine)
	}
}

func printResult(routine string, result *uint256.Int) {
	switch routine {
	case "read_rlp_to_memory":
		fmt.Printf("staged: %d bytes\n", result.Uint64())
	default:
		b := result.Bytes32()
		fmt.Printf("address: %s\n", types.BytesToAddress(b[12:]).Hex())
	}
}

func parsePayloads(s string) ([][]byte, error) {
	var out [][]byte
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "0x")
		b, err := hex.DecodeString(part)
		if err != nil {
			return nil, fmt.Errorf("payload %q: %v", part, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func wordFromBytes(b []byte) *uint256.Int {
	w := new(uint256.Int)
	w.SetBytes(b)
	return w
}
