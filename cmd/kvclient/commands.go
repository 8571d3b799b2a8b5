package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

func init() {
	rootCmd.AddCommand(
		hgetCmd,
		hgetallCmd,
		hsetCmd,
		hdelCmd,
		hexistCmd,
		hmgetCmd,
		hmsetCmd,
		hmdelCmd,
		hmexistCmd,
		publishCmd,
	)
}

func run(req kvpb.CommandRequest) {
	resp, err := roundTrip(context.Background(), req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(resp.String())
}

var hgetCmd = &cobra.Command{
	Use:     "hget <table> <key>",
	Short:   "Fetch one value",
	Args:    cobra.ExactArgs(2),
	Example: "# kvclient hget users alice",
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHget(args[0], args[1]))
	},
}

var hgetallCmd = &cobra.Command{
	Use:   "hgetall <table>",
	Short: "Fetch every pair in a table",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHgetall(args[0]))
	},
}

var hsetCmd = &cobra.Command{
	Use:   "hset <table> <key> <value>",
	Short: "Insert or overwrite a value",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := parseValue(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		run(kvpb.NewHset(args[0], args[1], v))
	},
}

var hdelCmd = &cobra.Command{
	Use:   "hdel <table> <key>",
	Short: "Remove a value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHdel(args[0], args[1]))
	},
}

var hexistCmd = &cobra.Command{
	Use:   "hexist <table> <key>",
	Short: "Check whether a key exists",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHexist(args[0], args[1]))
	},
}

var hmgetCmd = &cobra.Command{
	Use:   "hmget <table> <key...>",
	Short: "Fetch several values",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHmget(args[0], args[1:]))
	},
}

var hmsetCmd = &cobra.Command{
	Use:   "hmset <table> <key=value...>",
	Short: "Insert or overwrite several values",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		pairs := make([]kvpb.Kvpair, 0, len(args)-1)
		for _, kv := range args[1:] {
			k, raw, ok := strings.Cut(kv, "=")
			if !ok {
				fmt.Fprintf(os.Stderr, "malformed key=value pair %q\n", kv)
				os.Exit(1)
			}
			v, err := parseValue(raw)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			pairs = append(pairs, kvpb.NewKvpair(k, v))
		}
		run(kvpb.NewHmset(args[0], pairs))
	},
}

var hmdelCmd = &cobra.Command{
	Use:   "hmdel <table> <key...>",
	Short: "Remove several values",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHmdel(args[0], args[1:]))
	},
}

var hmexistCmd = &cobra.Command{
	Use:   "hmexist <table> <key...>",
	Short: "Check whether several keys exist",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(kvpb.NewHmexist(args[0], args[1:]))
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <topic> <value...>",
	Short: "Broadcast values to a topic's subscribers",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		values := make([]kvpb.Value, 0, len(args)-1)
		for _, raw := range args[1:] {
			v, err := parseValue(raw)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			values = append(values, v)
		}
		run(kvpb.NewPublish(args[0], values))
	},
}
