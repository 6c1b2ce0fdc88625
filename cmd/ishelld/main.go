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

// Command ishelld is a demo INC server: it exposes an "echo" method and
// broadcasts a periodic "system.tick" event to every subscribed client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	liblog "github.com/nabbar/ishell/logger"
	loglvl "github.com/nabbar/ishell/logger/level"

	"github.com/nabbar/ishell/inc/handshake"
	"github.com/nabbar/ishell/inc/message"
	"github.com/nabbar/ishell/inc/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ishelld",
		Short: "INC demo server: echo method + system.tick broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", "tcp://127.0.0.1:4040", "listen target (scheme://address, e.g. tcp://, unix://, udp://)")
	flags.String("node-name", "ishelld", "node name advertised during handshake")
	flags.Bool("disable-shm", false, "disable shared-memory zero-copy binary transfer")
	flags.Duration("tick-interval", 5*time.Second, "interval between system.tick broadcasts (0 disables it)")

	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("node_name", flags.Lookup("node-name"))
	_ = v.BindPFlag("disable_shm", flags.Lookup("disable-shm"))
	_ = v.BindPFlag("tick_interval", flags.Lookup("tick-interval"))
	v.SetEnvPrefix("ISHELLD")
	v.AutomaticEnv()

	return cmd
}

func runServer(ctx context.Context, v *viper.Viper) error {
	log := liblog.New(ctx)
	log.SetLevel(loglvl.InfoLevel)

	cfg := server.Config{
		ListenAddress:         v.GetString("listen"),
		VersionPolicy:         handshake.Compatible,
		ProtocolVersionRange:  handshake.VersionRange{Current: 1, Min: 1, Max: 1},
		DisableSharedMemory:   v.GetBool("disable_shm"),
		EncryptionRequirement: handshake.EncryptionOptional,
		NodeName:              v.GetString("node_name"),
	}

	srv := server.New(cfg)

	srv.HandleMethod = func(conn *server.Connection, seq uint32, call message.MethodCall) {
		log.Info(fmt.Sprintf("method call %q from %s", call.Name, conn.PeerName()), nil)
		switch call.Name {
		case "echo":
			_ = srv.SendMethodReply(conn, seq, 0, call.Args)
		default:
			_ = srv.SendMethodReply(conn, seq, 1, nil)
		}
	}
	srv.HandleSubscribe = func(conn *server.Connection, pattern string) bool {
		log.Info(fmt.Sprintf("%s subscribed to %q", conn.PeerName(), pattern), nil)
		return true
	}

	if e := srv.ListenOn(""); e != nil {
		return e
	}
	log.Info(fmt.Sprintf("listening on %s", cfg.ListenAddress), nil)
	defer srv.Close()

	var ticker *time.Ticker
	tickInterval := v.GetDuration("tick_interval")
	if tickInterval > 0 {
		ticker = time.NewTicker(tickInterval)
		defer ticker.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var tickChan <-chan time.Time
	if ticker != nil {
		tickChan = ticker.C
	}

	seq := 0
	for {
		select {
		case <-quit:
			log.Info("shutting down", nil)
			return nil
		case <-ctx.Done():
			return nil
		case <-tickChan:
			seq++
			srv.BroadcastEvent("system.tick", 1, []byte(fmt.Sprintf("tick-%d", seq)))
		}
	}
}
