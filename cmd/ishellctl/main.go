/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command ishellctl is a demo INC client: it can call a remote method, send
// a heartbeat, or subscribe to a pattern and print received events.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/ishell/inc/client"
	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/kernel"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "ishellctl",
		Short: "INC demo client",
	}

	persist := root.PersistentFlags()
	persist.String("server", "tcp://127.0.0.1:4040", "server target (scheme://address)")
	persist.String("node-name", "ishellctl", "node name advertised during handshake")
	persist.Duration("timeout", 5*time.Second, "operation timeout")
	_ = v.BindPFlag("server", persist.Lookup("server"))
	_ = v.BindPFlag("node_name", persist.Lookup("node-name"))
	_ = v.BindPFlag("timeout", persist.Lookup("timeout"))

	root.AddCommand(newCallCmd(v))
	root.AddCommand(newPingCmd(v))
	root.AddCommand(newSubscribeCmd(v))

	return root
}

func dial(v *viper.Viper) (*client.Context, error) {
	cfg := client.Config{
		DefaultServer:        v.GetString("server"),
		ProtocolVersionRange: handshake.VersionRange{Current: 1, Min: 1, Max: 1},
		DisableSharedMemory:  true,
		NodeName:             v.GetString("node_name"),
		OperationTimeout:     v.GetDuration("timeout"),
	}
	ctx := client.New(cfg)
	if e := ctx.Connect(""); e != nil {
		return nil, e
	}

	deadline := time.Now().Add(v.GetDuration("timeout"))
	for ctx.State() != client.Ready {
		if ctx.State() == client.Failed || time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to reach %s", cfg.DefaultServer)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return ctx, nil
}

func newCallCmd(v *viper.Viper) *cobra.Command {
	var method string
	var payload string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "invoke a remote method and print its reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, e := dial(v)
			if e != nil {
				return e
			}
			defer ctx.Disconnect()

			op, e := ctx.CallMethod(method, 1, []byte(payload), v.GetDuration("timeout"))
			if e != nil {
				return e
			}
			result, e := op.Wait(v.GetDuration("timeout"))
			if e != nil {
				return e
			}
			reply, de := message.DecodeMethodReply(result)
			if de != nil {
				return de
			}
			fmt.Printf("errorCode=%d result=%q\n", reply.ErrorCode, reply.Result)
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "echo", "method name")
	cmd.Flags().StringVar(&payload, "payload", "", "raw argument bytes (as a string)")
	return cmd
}

func newPingCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "send a heartbeat and report the round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, e := dial(v)
			if e != nil {
				return e
			}
			defer ctx.Disconnect()

			start := time.Now()
			op, e := ctx.PingPong()
			if e != nil {
				return e
			}
			if _, e := op.Wait(v.GetDuration("timeout")); e != nil {
				return e
			}
			fmt.Printf("pong in %s\n", time.Since(start))
			return nil
		},
	}
}

func newSubscribeCmd(v *viper.Viper) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "subscribe to a pattern and print events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, e := dial(v)
			if e != nil {
				return e
			}
			defer ctx.Disconnect()

			op, e := ctx.Subscribe(pattern)
			if e != nil {
				return e
			}
			if _, e := op.Wait(v.GetDuration("timeout")); e != nil {
				return e
			}

			recv := kernel.NewObject("ishellctl-subscriber", nil)
			_, _ = kernel.Connect(ctx.Object(), client.SigEventReceived, recv, func(args []any) {
				if len(args) < 3 {
					return
				}
				name, _ := args[0].(string)
				version, _ := args[1].(uint16)
				bytes, _ := args[2].([]byte)
				fmt.Printf("event %s v%d: %q\n", name, version, bytes)
			}, kernel.DeliveryDirect, nil)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			<-quit
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "app.*", "event pattern (exact name or \"prefix.*\")")
	return cmd
}
