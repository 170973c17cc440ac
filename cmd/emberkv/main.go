// EmberKV - an in-memory, namespaced key-value server speaking RESP.
//
// Usage:
//
//	emberkv serve [flags]
//	emberkv version
//
// Every serve flag can also be set as EMBERKV_<FLAG> (dashes become
// underscores), in a .env file, or in the file named by --config.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
