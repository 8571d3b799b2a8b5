package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr   string
	serverName   string
	clientCert   string
	clientKey    string
	serverCAFile string
)

var rootCmd = &cobra.Command{
	Use:   "kvclient",
	Short: "Talk to a networked key-value server over mutual TLS",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:9527", "server address")
	rootCmd.PersistentFlags().StringVar(&serverName, "server-name", "localhost", "expected server TLS name")
	rootCmd.PersistentFlags().StringVar(&clientCert, "cert", "", "client certificate PEM file (optional)")
	rootCmd.PersistentFlags().StringVar(&clientKey, "key", "", "client private key PEM file (optional)")
	rootCmd.PersistentFlags().StringVar(&serverCAFile, "ca", "", "server CA PEM file (optional, platform roots used otherwise)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
