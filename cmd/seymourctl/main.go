// Command seymourctl drives a Seymour masking screen from the shell.
//
// The screen is reached over TCP through an IP2SL bridge or directly over a
// serial port. Global flags can also be set by environment variables:
//
//	SEYMOUR_HOST         - bridge host (default: "localhost")
//	SEYMOUR_PORT         - bridge port (default: 4999)
//	SEYMOUR_SERIAL_PORT  - serial device; overrides host and port
//	SEYMOUR_LOG_LEVEL    - debug, info, warn or error (default: "warn")
//
// Commands:
//
//	status                             current motion status
//	positions                          motor positions in percent
//	info                               static system information
//	presets                            stored ratio presets
//	apply <id>                         move to preset <id> and wait
//	store <id>                         store the current positions as preset <id>
//	reset [id]                         restore preset <id> (default all) to factory values
//	home|halt|calibrate [motor]        run the command on motor (default ALL) and wait
//	in|out [motor] [-jog|-step|-limit] move by a step (default), a jog or to the limit
//	diag <00|10|20>                    print a diagnostics dump
//	discover tcp|serial                list bridges or serial ports
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-seymour/seymour"
	"github.com/go-seymour/seymour/discovery"
	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type globals struct {
	host     string
	port     int
	serial   string
	logLevel string
	poll     time.Duration
	settle   time.Duration
	timeout  time.Duration
	yes      bool
}

type app struct {
	globals
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	fs := flag.NewFlagSet("seymourctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&a.host, "host", envString("SEYMOUR_HOST", "localhost"), "bridge host")
	fs.IntVar(&a.port, "port", envInt("SEYMOUR_PORT", transport.DefaultTCPPort), "bridge port")
	fs.StringVar(&a.serial, "serial", os.Getenv("SEYMOUR_SERIAL_PORT"), "serial device, overrides -host and -port")
	fs.StringVar(&a.logLevel, "log-level", envString("SEYMOUR_LOG_LEVEL", "warn"), "log level")
	fs.DurationVar(&a.poll, "poll", seymour.DefaultPollInterval, "status poll interval while waiting for motion")
	fs.DurationVar(&a.settle, "settle", seymour.DefaultSettleDelay, "delay before the first status poll")
	fs.DurationVar(&a.timeout, "timeout", seymour.DefaultMotionTimeout, "motion wait timeout")
	fs.BoolVar(&a.yes, "yes", false, "do not ask for confirmation")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: seymourctl [flags] <command> [args]")
		fmt.Fprintln(stderr, "commands: status positions info presets apply store reset home halt calibrate in out diag discover")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	level, err := logger.ParseLevel(a.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	a.log = logger.NewSlogWithWriter(stderr, level, false)

	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	err = a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "status":
		return a.withClient(ctx, func(c *seymour.Client) error {
			st, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, st)
			return nil
		})
	case "positions":
		return a.withClient(ctx, a.printPositions(ctx))
	case "info":
		return a.withClient(ctx, a.printSystemInfo(ctx))
	case "presets":
		return a.withClient(ctx, a.printPresets(ctx))
	case "apply":
		r, err := ratioArg(args, true)
		if err != nil {
			return err
		}
		return a.withMotion(ctx, func(c *seymour.Client) (seymour.MotionResult, error) {
			return c.ApplyPreset(ctx, *r)
		})
	case "store":
		r, err := ratioArg(args, true)
		if err != nil {
			return err
		}
		return a.withClient(ctx, func(c *seymour.Client) error {
			return c.UpdateRatio(ctx, *r)
		})
	case "reset":
		r, err := ratioArg(args, false)
		if err != nil {
			return err
		}
		target := "ALL PRESETS"
		if r != nil {
			target = "preset " + r.String()
		}
		if !a.confirm(fmt.Sprintf("Reset %s to factory default?", target)) {
			return errors.New("aborted")
		}
		return a.withClient(ctx, func(c *seymour.Client) error {
			return c.ClearSettings(ctx, r)
		})
	case "home", "halt", "calibrate":
		motor, err := motorArg(args)
		if err != nil {
			return err
		}
		return a.withMotion(ctx, func(c *seymour.Client) (seymour.MotionResult, error) {
			switch name {
			case "home":
				return c.MoveHome(ctx, motor)
			case "halt":
				return c.Halt(ctx, motor)
			default:
				return c.Calibrate(ctx, motor)
			}
		})
	case "in", "out":
		motor, mv, err := moveArgs(args)
		if err != nil {
			return err
		}
		return a.withMotion(ctx, func(c *seymour.Client) (seymour.MotionResult, error) {
			if name == "in" {
				return c.MoveIn(ctx, motor, mv)
			}
			return c.MoveOut(ctx, motor, mv)
		})
	case "diag":
		if len(args) != 1 || !protocol.DiagnosticOption(args[0]).Valid() {
			return fmt.Errorf("%w: diag <00|10|20>", errUsage)
		}
		return a.withClient(ctx, func(c *seymour.Client) error {
			out, err := c.GetDiagnostics(ctx, protocol.DiagnosticOption(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, out)
			return nil
		})
	case "discover":
		if len(args) != 1 {
			return fmt.Errorf("%w: discover tcp|serial", errUsage)
		}
		switch args[0] {
		case "tcp":
			return a.discoverTCP(ctx)
		case "serial":
			return a.discoverSerial()
		default:
			return fmt.Errorf("%w: discover tcp|serial", errUsage)
		}
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func (a *app) endpoint() transport.Endpoint {
	if a.serial != "" {
		return transport.SerialEndpoint(a.serial)
	}

	return transport.TCPEndpoint(a.host, a.port)
}

func (a *app) withClient(ctx context.Context, fn func(*seymour.Client) error) error {
	c, err := seymour.Connect(ctx, a.endpoint(),
		seymour.WithLogger(a.log),
		seymour.WithPollInterval(a.poll),
		seymour.WithSettleDelay(a.settle),
		seymour.WithMotionTimeout(a.timeout),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func (a *app) withMotion(ctx context.Context, fn func(*seymour.Client) (seymour.MotionResult, error)) error {
	return a.withClient(ctx, func(c *seymour.Client) error {
		res, err := fn(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s after %d polls in %s\n", res.Final, res.Polls, res.Elapsed.Round(time.Millisecond))
		return nil
	})
}

func (a *app) printPositions(ctx context.Context) func(*seymour.Client) error {
	return func(c *seymour.Client) error {
		positions, err := c.GetPositions(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MOTOR\tPOSITION")
		for _, p := range positions {
			fmt.Fprintf(w, "%s\t%.1f%%\n", p.Motor, p.Percent)
		}
		return w.Flush()
	}
}

func (a *app) printSystemInfo(ctx context.Context) func(*seymour.Client) error {
	return func(c *seymour.Client) error {
		info, err := c.GetSystemInfo(ctx)
		if err != nil {
			return err
		}

		masks := make([]string, 0, len(info.MaskIDs))
		for _, m := range info.MaskIDs {
			masks = append(masks, m.String())
		}

		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "model\t%s\n", info.Model)
		fmt.Fprintf(w, "width\t%.2f in\n", info.WidthInches)
		fmt.Fprintf(w, "height\t%.2f in\n", info.HeightInches)
		fmt.Fprintf(w, "serial\t%s\n", info.Serial)
		fmt.Fprintf(w, "masks\t%s\n", strings.Join(masks, ","))
		return w.Flush()
	}
}

func (a *app) printPresets(ctx context.Context) func(*seymour.Client) error {
	return func(c *seymour.Client) error {
		settings, err := c.GetRatioSettings(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tWIDTH\tHEIGHT\tPOSITIONS\tADJUSTMENTS")
		for _, s := range settings {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
				s.Ratio, s.Label, s.WidthInches, s.HeightInches,
				joinFloats(s.MotorPositions), joinFloats(s.MotorAdjustments))
		}
		return w.Flush()
	}
}

func (a *app) discoverTCP(ctx context.Context) error {
	candidates, err := discovery.DiscoverTCP(ctx, discovery.WithLogger(a.log))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tMODEL")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%s\n", c.Endpoint(), c.Model())
	}
	return w.Flush()
}

func (a *app) discoverSerial() error {
	candidates, err := discovery.DiscoverSerial()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tDESCRIPTION\tHARDWARE ID")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Device, c.Description, c.HardwareID)
	}
	return w.Flush()
}

func (a *app) confirm(prompt string) bool {
	if a.yes {
		return true
	}

	fmt.Fprintf(a.stderr, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(a.stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

func ratioArg(args []string, required bool) (*protocol.Ratio, error) {
	switch {
	case len(args) == 0 && !required:
		return nil, nil
	case len(args) != 1:
		return nil, fmt.Errorf("%w: expected one three-digit ratio id", errUsage)
	}

	r, err := protocol.ParseRatio(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	return &r, nil
}

func motorArg(args []string) (protocol.MotorID, error) {
	switch len(args) {
	case 0:
		return protocol.MotorAll, nil
	case 1:
		m, err := protocol.ParseMotorID(args[0])
		if err != nil {
			return 0, fmt.Errorf("%w: %w", errUsage, err)
		}
		return m, nil
	default:
		return 0, fmt.Errorf("%w: expected at most one motor", errUsage)
	}
}

func moveArgs(args []string) (protocol.MotorID, protocol.Movement, error) {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jog := fs.Bool("jog", false, "move by the smallest increment")
	step := fs.Bool("step", false, "move by 1% of the range (default)")
	limit := fs.Bool("limit", false, "move until the limit")

	// flags may follow the motor argument
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return 0, "", fmt.Errorf("%w: %w", errUsage, err)
		}
		args = fs.Args()
		if len(args) > 0 {
			positional = append(positional, args[0])
			args = args[1:]
		}
	}

	if countTrue(*jog, *step, *limit) > 1 {
		return 0, "", fmt.Errorf("%w: -jog, -step and -limit are exclusive", errUsage)
	}

	motor, err := motorArg(positional)
	if err != nil {
		return 0, "", err
	}

	switch {
	case *jog:
		return motor, protocol.MoveJog, nil
	case *limit:
		return motor, protocol.MoveUntilLimit, nil
	default:
		return motor, protocol.MoveStep, nil
	}
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}

	return n
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', 1, 64)
	}

	return strings.Join(parts, " ")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}
