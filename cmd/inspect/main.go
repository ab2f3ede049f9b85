// Command inspect dumps raw keys from a data directory for debugging.
// The server must not be running against the same path.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"nocaflow/pkg/store"
)

func main() {
	var dbPath, prefix string
	var values bool
	flag.StringVar(&dbPath, "db", "", "data directory path")
	flag.StringVar(&prefix, "prefix", "", "key prefix to list (e.g. conv:, msgkey:, system:)")
	flag.BoolVar(&values, "values", false, "print values as well as keys")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	if err := store.Open(filepath.Join(dbPath, "store")); err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list keys: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		if !values {
			fmt.Println(k)
			continue
		}
		v, err := store.GetKey(k)
		if err != nil {
			fmt.Printf("%s\t<unreadable: %v>\n", k, err)
			continue
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
