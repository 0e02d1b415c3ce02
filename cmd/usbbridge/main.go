// Command usbbridge transfers files between two machines over a raw serial
// link. Either end can send, receive or both; every frame is checksummed and
// acknowledged, so a noisy line costs retransmissions, not data.
//
// Usage:
//
//	usbbridge -port /dev/ttyUSB0 -mode send file1 file2 ...
//	usbbridge -port /dev/ttyUSB0 -mode recv -out ./incoming
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/bridge"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/serialport"
)

func main() {
	var (
		modeFlag  = flag.String("mode", "both", "transfer mode: send, recv or both")
		portFlag  = flag.String("port", "", "serial device, e.g. /dev/ttyUSB0")
		baudFlag  = flag.Int("baud", bridge.DefaultBaudRate, "serial line speed")
		outFlag   = flag.String("out", ".", "directory incoming files are written to")
		chunkFlag = flag.Int("chunk", bridge.DefaultChunkSize, "chunk size in bytes")
		retryFlag = flag.Int("retries", bridge.DefaultRetryLimit, "retransmissions per frame")
		listFlag  = flag.Bool("list", false, "list serial ports and exit")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *listFlag {
		listPorts()

		return
	}

	if *verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	mode, err := bridge.ParseMode(*modeFlag)
	if err != nil {
		fatal(err)
	}

	files := flag.Args()

	if *portFlag == "" {
		fatal(errors.New("missing -port"))
	}

	if mode.CanSend() && len(files) == 0 {
		fatal(errors.New("send mode needs at least one file argument"))
	}

	if !mode.CanSend() && len(files) > 0 {
		fatal(fmt.Errorf("mode %s does not take file arguments", mode))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serialport.Open(*portFlag, *baudFlag)
	if err != nil {
		fatal(err)
	}

	meter := newMeter(os.Stdout)

	cfg, err := bridge.NewSessionConfig(mode,
		bridge.WithBaudRate(*baudFlag),
		bridge.WithChunkSize(*chunkFlag),
		bridge.WithRetryLimit(*retryFlag),
		bridge.WithOutputDir(*outFlag),
		bridge.WithProgressFunc(meter.update),
	)
	if err != nil {
		fatal(err)
	}

	sess, err := bridge.NewSession(ctx, port, cfg)
	if err != nil {
		fatal(err)
	}

	if mode.CanSend() {
		if err := sess.QueueFile(files...); err != nil {
			fatal(err)
		}
	}

	if err := sess.Open(); err != nil {
		fatal(err)
	}

	err = sess.Wait(context.Background())
	meter.finish()
	printSummary(sess)

	if err != nil {
		fmt.Fprintln(os.Stderr, "usbbridge: session failed:", err)
		os.Exit(1)
	}
}

func listPorts() {
	ports, err := serialport.List()
	if err != nil {
		fatal(err)
	}

	if len(ports) == 0 {
		fmt.Println("no serial ports found")

		return
	}

	for _, p := range ports {
		fmt.Println(p)
	}
}

func printSummary(sess *bridge.Session) {
	tasks := sess.Tasks()
	if len(tasks) == 0 {
		return
	}

	for _, task := range tasks {
		status := task.State.String()
		if task.Err != nil {
			status = fmt.Sprintf("%s (%v)", status, task.Err)
		}

		name := task.Name
		if name == "" {
			name = task.Path
		}

		fmt.Printf("%-4s %-30s %10s  %s\n",
			task.Direction, name, fmtBytes(task.BytesConfirmed), status)
	}

	m := sess.Metrics()
	fmt.Printf("frames sent %d, received %d, retried %d; files sent %d, received %d, failed %d\n",
		m.FrameSendCount.Load(), m.FrameRecvCount.Load(), m.FrameRetryCount.Load(),
		m.FileSendCount.Load(), m.FileRecvCount.Load(), m.FileErrCount.Load())
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "usbbridge:", err)
	os.Exit(1)
}
