// cubetool is a demonstration CLI over the cube/continuation/cryptochunk/
// veritum/store stack: it compiles a Veritum from a payload file, stores
// its chunks, and recovers a Veritum back out of a store.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "put":
		return runPut(args[1:], stdout, stderr)
	case "get":
		return runGet(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown subcommand %q\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: cubetool <subcommand> [flags]")
	_, _ = fmt.Fprintln(w, "subcommands:")
	_, _ = fmt.Fprintln(w, "  keygen   generate an ed25519 signing keypair or an x25519 recipient keypair")
	_, _ = fmt.Fprintln(w, "  put      compile a Veritum from a payload and store its chunks")
	_, _ = fmt.Fprintln(w, "  get      recover a Veritum's payload from stored chunk keys")
}
