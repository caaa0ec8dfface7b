package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/yoshuavic8/church-checkin/internal/capture"
	"github.com/yoshuavic8/church-checkin/internal/checkin"
	"github.com/yoshuavic8/church-checkin/internal/decode"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const payloadGrace = time.Second

type config struct {
	strategy       string
	cameraURLs     []string
	imagePath      string
	code           string
	interval       time.Duration
	timeout        time.Duration
	dbPath         string
	member         string
	generalSession string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("qrscan")
	var (
		strategy       = fs.StringLong("strategy", "", "Capture strategy: streaming, still-image or manual (default: chosen from capabilities)")
		cameraURLs     = fs.StringListLong("camera-url", "MJPEG camera URL, repeatable")
		imagePath      = fs.StringLong("image", "", "Photo to scan with the still-image strategy")
		code           = fs.StringLong("code", "", "Meeting code to enter manually")
		interval       = fs.DurationLong("interval", capture.DefaultPollInterval, "Camera frame poll interval")
		timeout        = fs.DurationLong("timeout", 0, "Give up live scanning after this long (0 waits until interrupted)")
		dbPath         = fs.StringLong("db", "", "Record the check-in in this database (optional)")
		member         = fs.StringLong("member", "", "Member UUID to check in for meeting codes")
		generalSession = fs.StringLong("general-session", "", "Session UUID that receives GENERAL member codes")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("QRSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode, err := run(ctx, config{
		strategy:       *strategy,
		cameraURLs:     *cameraURLs,
		imagePath:      *imagePath,
		code:           *code,
		interval:       *interval,
		timeout:        *timeout,
		dbPath:         *dbPath,
		member:         *member,
		generalSession: *generalSession,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode)
}

// run scans one payload and optionally records it. The exit code is 0 for a
// check-in or a scanned payload, 2 when the check-in was refused and 1 on error.
func run(ctx context.Context, cfg config) (int, error) {
	var choice *capture.Kind
	switch {
	case cfg.strategy != "":
		kind, err := capture.ParseKind(cfg.strategy)
		if err != nil {
			return 1, err
		}
		choice = &kind
	case cfg.code != "":
		kind := capture.KindManual
		choice = &kind
	case cfg.imagePath != "":
		kind := capture.KindStillImage
		choice = &kind
	}

	report := capture.Probe(capture.LocalEnvironment{CameraURLs: cfg.cameraURLs})
	slog.Debug("Capture capabilities", "can_stream", report.CanStream, "camera", report.HasCameraDevice)

	engine := decode.NewEngine()
	var acquirers []capture.Acquirer
	client := &http.Client{}
	for _, u := range cfg.cameraURLs {
		acquirers = append(acquirers, capture.MJPEGAcquirers(client, u)...)
	}
	still := capture.NewStillImageCapture(engine)
	manual := capture.NewManualEntry()

	payloads := make(chan string, 1)
	selector := capture.NewSelector(capture.Callbacks{
		OnPayload: func(p string) {
			select {
			case payloads <- p:
			default:
			}
		},
		OnDiagnostic: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}, capture.NewStreamingCaptureWithInterval(engine, cfg.interval, acquirers...), still, manual)
	defer selector.Close()

	active, err := selector.Select(ctx, report, choice)
	if err != nil {
		return 1, fmt.Errorf("starting scanner: %w", err)
	}

	var (
		payload string
		ok      bool
	)
	switch active.Kind() {
	case capture.KindStillImage:
		if cfg.imagePath == "" {
			return 1, errors.New("--image is required for still-image capture")
		}
		data, err := os.ReadFile(cfg.imagePath)
		if err != nil {
			return 1, fmt.Errorf("reading image: %w", err)
		}
		payload, ok = still.Submit(active.Handle, capture.Upload{
			Filename: filepath.Base(cfg.imagePath),
			Data:     data,
		})
	case capture.KindManual:
		payload, ok = manual.Enter(active.Handle, cfg.code)
	case capture.KindStreaming:
		if !active.Handle.Active() {
			return 1, errors.New("no camera could be opened")
		}
		fmt.Fprintln(os.Stderr, "Scanning, hold the QR code up to the camera...")
		if cfg.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
		select {
		case payload = <-payloads:
			ok = true
		case <-active.Handle.Done():
			// The payload callback runs right after the session ends
			select {
			case payload = <-payloads:
				ok = true
			case <-time.After(payloadGrace):
			}
		case <-ctx.Done():
			return 1, fmt.Errorf("scanning: %w", ctx.Err())
		}
	}
	if !ok {
		return 1, errors.New("no check-in code was read")
	}
	selector.Close()

	if cfg.dbPath == "" {
		return printPayload(payload)
	}
	return record(ctx, cfg, payload)
}

func printPayload(payload string) (int, error) {
	fmt.Println(payload)
	p, err := checkin.ParsePayload(payload)
	if err != nil {
		return 2, err
	}
	fmt.Fprintf(os.Stderr, "%s code for meeting %s\n", p.Kind, describeSession(p))
	return 0, nil
}

func describeSession(p checkin.Payload) string {
	if p.General {
		return checkin.GeneralSessionToken
	}
	return p.SessionID.String()
}

func record(ctx context.Context, cfg config, payload string) (int, error) {
	var general uuid.UUID
	if cfg.generalSession != "" {
		var err error
		if general, err = uuid.Parse(cfg.generalSession); err != nil {
			return 1, fmt.Errorf("parsing general session: %w", err)
		}
	}
	if cfg.member != "" {
		member, err := uuid.Parse(cfg.member)
		if err != nil {
			return 1, fmt.Errorf("parsing member: %w", err)
		}
		ctx = checkin.WithSubject(ctx, member)
	}

	db, err := checkin.NewBoltDB(cfg.dbPath)
	if err != nil {
		return 1, err
	}
	defer db.Close()

	out, err := checkin.NewCoordinatorWithGeneral(db, checkin.ContextSubject, general).Handle(ctx, payload)
	if err != nil {
		return 1, err
	}
	fmt.Printf("%s: %s\n", out.State, out.Message)
	switch out.State {
	case checkin.StateSuccess, checkin.StateAlreadyCheckedIn:
		return 0, nil
	default:
		return 2, nil
	}
}
