package main

import (
	"bufio"
	"chronolog/client"
	"chronolog/server"
	"chronolog/server/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronolog",
		Short: "Chronolog journal server and CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// glog reads its configuration from the go flag set.
			_ = flag.CommandLine.Parse(nil)
		},
	}
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().String("addr_host", "127.0.0.1", "Host of the chronolog server")
	rootCmd.PersistentFlags().Int("addr_port", 50051, "Port of the chronolog server")
	rootCmd.AddCommand(
		newServeCommand(),
		newStoreCommand(),
		newHistoryCommand(),
		newTailCommand(),
		newReplayCommand(),
	)
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the journal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rollCycleName, _ := cmd.Flags().GetString("roll_cycle")
			rc, err := storage.ParseRollCycle(rollCycleName)
			if err != nil {
				return err
			}
			srv, err := server.NewRPCServer(server.RPCServerOpts{RollCycle: rc})
			if err != nil {
				return err
			}
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				glog.Infof("Received signal: %s. Stopping server", sig.String())
				if err := srv.Stop(); err != nil {
					glog.Errorf("Unable to stop server cleanly due to err: %s", err.Error())
				}
			}()
			return srv.Run()
		},
	}
	cmd.Flags().String("roll_cycle", storage.DailyRollCycle.Name, "Roll cycle of the journal: MINUTELY, HOURLY or DAILY")
	return cmd
}

func newStoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "store [payload...]",
		Short: "Store payloads. Lines are read from stdin if no payloads are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialServer(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx := cmd.Context()
			if len(args) > 0 {
				for _, arg := range args {
					if err := c.Store(ctx, []byte(arg)); err != nil {
						return err
					}
				}
				return nil
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if len(scanner.Bytes()) == 0 {
					continue
				}
				if err := c.Store(ctx, append([]byte(nil), scanner.Bytes()...)); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print every stored payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return consume(cmd, func(ctx context.Context, c *client.Client) (*client.Consumer, error) {
				return c.History(ctx)
			})
		},
	}
}

func newTailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print payloads as they are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStart, _ := cmd.Flags().GetBool("from_start")
			deleteAfterRead, _ := cmd.Flags().GetBool("delete_after_read")
			if deleteAfterRead && !fromStart {
				return errors.New("--delete_after_read requires --from_start")
			}
			return consume(cmd, func(ctx context.Context, c *client.Client) (*client.Consumer, error) {
				if fromStart {
					return c.All(ctx, deleteAfterRead)
				}
				return c.NewValues(ctx)
			})
		},
	}
	cmd.Flags().Bool("from_start", false, "Print the history before tailing")
	cmd.Flags().Bool("delete_after_read", false, "Delete the cycles that have been read")
	return cmd
}

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			acceleration, _ := cmd.Flags().GetFloat64("acceleration")
			loop, _ := cmd.Flags().GetBool("loop")
			loopDelay, _ := cmd.Flags().GetDuration("loop_delay")
			return consume(cmd, func(ctx context.Context, c *client.Client) (*client.Consumer, error) {
				if loop {
					return c.ReplayLoop(ctx, loopDelay)
				}
				return c.Replay(ctx, acceleration)
			})
		},
	}
	cmd.Flags().Float64("acceleration", 1, "Replay speed up. Values <= 0 replay as fast as possible")
	cmd.Flags().Bool("loop", false, "Replay forever with the original timing")
	cmd.Flags().Duration("loop_delay", time.Second, "Delay between loop iterations")
	return cmd
}

func dialServer(cmd *cobra.Command) (*client.Client, error) {
	host, _ := cmd.Flags().GetString("addr_host")
	port, _ := cmd.Flags().GetInt("addr_port")
	return client.NewClient(client.NodeAddress{Host: host, Port: port})
}

func consume(cmd *cobra.Command, open func(context.Context, *client.Client) (*client.Consumer, error)) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	consumer, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer consumer.Close()
	go func() {
		<-ctx.Done()
		consumer.Close()
	}()
	out := cmd.OutOrStdout()
	for {
		payload, err := consumer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, client.ErrConsumerClosed) {
				return nil
			}
			return err
		}
		if consumer.LoopRestart() {
			fmt.Fprintln(out, "--- loop restart ---")
		}
		fmt.Fprintln(out, string(payload))
	}
}
