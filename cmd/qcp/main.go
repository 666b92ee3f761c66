package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v2"

	"github.com/terrorbyte/qcp/internal/bwconfig"
	"github.com/terrorbyte/qcp/internal/closedown"
	"github.com/terrorbyte/qcp/internal/qcplog"
)

const (
	exampleGet = "qcp host:/srv/dataset.bin ./dataset.bin"
	examplePut = "qcp ./dataset.bin host:/srv/dataset.bin"
)

func main() {
	app := &cli.App{
		Name:      "qcp",
		Usage:     "copy a file to or from a remote host over an SSH-bootstrapped QUIC session",
		ArgsUsage: "<SOURCE> <DESTINATION>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "rx", Value: bwconfig.DefaultRxBytesPerSec, Usage: "expected receive bandwidth, bytes/sec"},
			&cli.Uint64Flag{Name: "tx", Value: bwconfig.DefaultTxBytesPerSec, Usage: "expected transmit bandwidth, bytes/sec"},
			&cli.UintFlag{Name: "rtt", Value: bwconfig.DefaultRTTMillis, Usage: "expected round-trip time, milliseconds"},
			&cli.StringFlag{Name: "port", Usage: "local UDP port or range the server may bind, e.g. 30000-30100"},
			&cli.StringFlag{Name: "congestion", Value: string(bwconfig.DefaultCongestion), Usage: "congestion controller name (cubic or bbr); forwarded to the server and reported, not applied to the QUIC connection"},
			&cli.StringFlag{Name: "ssh-config", Usage: "path to an ssh_config file (default ~/.ssh/config)"},
			&cli.StringFlag{Name: "ssh", Value: "ssh", Usage: "ssh client binary to invoke"},
			&cli.StringFlag{Name: "identity", Aliases: []string{"i"}, Usage: "path to an SSH private key, passed to ssh as -i"},
			&cli.StringSliceFlag{Name: "ssh-option", Aliases: []string{"S"}, Usage: "passthrough ssh -o k=v option (repeatable)"},
			&cli.IntFlag{Name: "chunk-size", Value: bwconfig.DefaultOptions().ChunkSize, Usage: "bulk-copy buffer size in bytes"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "help-buffers", Usage: "print OS socket buffer tuning advice and exit"},
			&cli.BoolFlag{Name: "server", Hidden: true, Usage: "internal: run in server mode, spoken to over stdin/stdout"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "qcp:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("help-buffers") {
		fmt.Println(bwconfig.BandwidthHelpText)
		return nil
	}

	opts, err := optionsFromFlags(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	qcplog.Configure(os.Stderr, c.Bool("debug"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// closedownStore lets the SIGINT handler below report whatever
	// closedown counters the client session has published so far,
	// instead of going silent the moment ^C is pressed.
	closedownStore := closedown.NewStore()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		if report, ok := closedownStore.Get(); ok {
			fmt.Fprintf(os.Stderr, "qcp: interrupted, %d bytes sent before cancellation\n", report.Local.SentBytes)
		}
		cancel()
	}()

	if c.Bool("server") {
		if err := runServer(ctx, opts); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return nil
	}

	if c.NArg() != 2 {
		return cli.Exit(fmt.Sprintf("expected exactly SOURCE and DESTINATION\nExample GET: %s\nExample PUT: %s", exampleGet, examplePut), 1)
	}
	if err := runClient(ctx, c.Args().Get(0), c.Args().Get(1), opts, closedownStore); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func optionsFromFlags(c *cli.Context) (bwconfig.Options, error) {
	opts := bwconfig.DefaultOptions()
	opts.Rx = c.Uint64("rx")
	opts.Tx = c.Uint64("tx")
	opts.RTTMillis = uint32(c.Uint("rtt"))
	opts.Congestion = bwconfig.Congestion(c.String("congestion"))
	opts.SSHConfigPath = c.String("ssh-config")
	opts.SSHCommand = c.String("ssh")
	opts.SSHIdentity = c.String("identity")
	opts.SSHOptions = c.StringSlice("ssh-option")
	if cs := c.Int("chunk-size"); cs > 0 {
		opts.ChunkSize = cs
	}
	if pr := c.String("port"); pr != "" {
		parsed, err := bwconfig.ParsePortRange(pr)
		if err != nil {
			return opts, err
		}
		opts.Port = parsed
	}
	return opts, nil
}
