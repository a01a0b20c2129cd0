package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dnr/segstore/common/client"
	"github.com/dnr/segstore/daemon"
)

func defaultSocket() string {
	return filepath.Join(os.TempDir(), daemon.Socket)
}

func main() {
	var addr string

	root := &cobra.Command{
		Use:           "segstore",
		Short:         "segmented in-memory byte store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&addr, "addr", "a", defaultSocket(),
		"daemon unix socket path or tcp address")

	cli := func() *client.Client { return client.New(addr) }

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "run the device daemon",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := daemon.Config{SocketPath: addr}
			if listen, _ := c.Flags().GetString("listen"); listen != "" {
				cfg = daemon.Config{ListenAddr: listen}
			}
			s, err := daemon.Start(cfg)
			if err != nil {
				return err
			}
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			log.Println("got signal", <-ch)
			s.Stop()
			return nil
		},
	}
	daemonCmd.Flags().String("listen", "", "listen on tcp address instead of socket")

	var createReq daemon.CreateReq
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "create a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			createReq.Name = args[0]
			return cli().CallAndPrint(c.Context(), daemon.CreatePath, &createReq)
		},
	}
	createCmd.Flags().StringVar(&createReq.Kind, "kind", "cache", "allocator kind: cache, pages, scatter")
	createCmd.Flags().Int64Var(&createReq.Quantum, "quantum", 0, "block size in bytes (cache kind)")
	createCmd.Flags().Int64Var(&createReq.Qset, "qset", 0, "block slots per segment")
	createCmd.Flags().IntVar(&createReq.Order, "order", 0, "pages per block as a power of two (page kinds)")
	createCmd.Flags().Int64Var(&createReq.MaxBlocks, "max-blocks", 0, "block budget, 0 for unlimited")

	rmCmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "trim and remove a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.RemovePath, &daemon.RemoveReq{Name: args[0]})
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "list devices",
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.ListPath, &daemon.ListReq{})
		},
	}

	var readReq daemon.ReadReq
	readCmd := &cobra.Command{
		Use:   "read <name>",
		Short: "read bytes to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			readReq.Name = args[0]
			var res daemon.ReadResp
			if err := cli().Call(c.Context(), daemon.ReadPath, &readReq, &res); err != nil {
				return err
			}
			_, err := os.Stdout.Write(res.Data)
			return err
		},
	}
	readCmd.Flags().Int64Var(&readReq.Offset, "offset", 0, "byte offset")
	readCmd.Flags().Int64Var(&readReq.Length, "length", 0, "bytes to read")

	var writeOffset int64
	writeCmd := &cobra.Command{
		Use:   "write <name>",
		Short: "write stdin to the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			req := daemon.WriteReq{Name: args[0], Offset: writeOffset, Data: data}
			return cli().CallAndPrint(c.Context(), daemon.WritePath, &req)
		},
	}
	writeCmd.Flags().Int64Var(&writeOffset, "offset", 0, "byte offset")

	trimCmd := &cobra.Command{
		Use:   "trim <name>",
		Short: "reset a device to empty",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.TrimPath, &daemon.TrimReq{Name: args[0]})
		},
	}

	var confReq daemon.ConfigureReq
	configCmd := &cobra.Command{
		Use:   "config <name>",
		Short: "trim a device and install a new shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			confReq.Name = args[0]
			return cli().CallAndPrint(c.Context(), daemon.ConfigurePath, &confReq)
		},
	}
	configCmd.Flags().StringVar(&confReq.Kind, "kind", "cache", "allocator kind: cache, pages, scatter")
	configCmd.Flags().Int64Var(&confReq.Quantum, "quantum", 0, "block size in bytes (cache kind)")
	configCmd.Flags().Int64Var(&confReq.Qset, "qset", 0, "block slots per segment")
	configCmd.Flags().IntVar(&confReq.Order, "order", 0, "pages per block as a power of two (page kinds)")
	configCmd.Flags().Int64Var(&confReq.MaxBlocks, "max-blocks", 0, "block budget, 0 for unlimited")

	statsCmd := &cobra.Command{
		Use:   "stats <name>",
		Short: "dump device stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.StatsPath, &daemon.StatsReq{Name: args[0]})
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug",
		Short: "dump allocation state of all devices",
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.DebugPath, &daemon.DebugReq{})
		},
	}

	mapCmd := &cobra.Command{
		Use:   "map <name>",
		Short: "open a mapping on a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cli().CallAndPrint(c.Context(), daemon.MapPath, &daemon.MapReq{Name: args[0]})
		},
	}

	unmapCmd := &cobra.Command{
		Use:   "unmap <name> <mapping-id>",
		Short: "close a mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			req := daemon.UnmapReq{Name: args[0], MappingId: id}
			return cli().CallAndPrint(c.Context(), daemon.UnmapPath, &req)
		},
	}

	faultCmd := &cobra.Command{
		Use:   "fault <name> <mapping-id> <offset>",
		Short: "resolve the page backing an offset",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			off, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return err
			}
			req := daemon.FaultReq{Name: args[0], MappingId: id, Offset: off}
			var res daemon.FaultResp
			if err := cli().Call(c.Context(), daemon.FaultPath, &req, &res); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "page of %d bytes, refs %d\n", len(res.Data), res.Refs)
			_, err = os.Stdout.Write(res.Data)
			return err
		},
	}

	root.AddCommand(daemonCmd, createCmd, rmCmd, lsCmd, readCmd, writeCmd,
		trimCmd, configCmd, statsCmd, debugCmd, mapCmd, unmapCmd, faultCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
