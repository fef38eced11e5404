package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/nexus-receiver/internal/capture"
	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
)

// decodeOne decodes frame and writes its record to w. channel 0 accepts any channel.
func decodeOne(w io.Writer, frame logic.Frame, channel uint8, now time.Time) error {
	var (
		r   logic.Reading
		err error
	)
	if channel == 0 {
		r, err = logic.Parse(frame, now)
	} else {
		r, err = logic.NewDecoder(channel).Decode(frame, now)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, r.Record())
	return err
}

// frameFromLine accepts a bare sample dump or the samples= field copied
// from a rejected-frame log line.
func frameFromLine(line string) (logic.Frame, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "samples=")
	line = strings.Trim(line, `"`)
	return logic.ParseSamples(line)
}

func newDecodeCmd() *cobra.Command {
	var channel uint8
	cmd := &cobra.Command{
		Use:   "decode [SAMPLES...]",
		Short: "Decode logged sample dumps",
		Long: `Decode one frame per argument, or one frame per line of standard input
when no arguments are given. A frame is a list of gap durations in
microseconds separated by commas or spaces, as logged for rejected frames.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if len(lines) == 0 {
				var err error
				if lines, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return decodeLines(cmd.OutOrStdout(), lines, channel, time.Now())
		},
	}
	cmd.Flags().Uint8Var(&channel, "channel", 0, "only accept this channel (0 accepts any)")
	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			lines = append(lines, sc.Text())
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// decodeLines decodes every line and reports how many failed.
func decodeLines(w io.Writer, lines []string, channel uint8, now time.Time) error {
	failed := 0
	for i, line := range lines {
		frame, err := frameFromLine(line)
		if err == nil {
			err = decodeOne(w, frame, channel, now)
		}
		if err != nil {
			failed++
			log.WithField("line", i+1).WithError(err).Warn("decode failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d frames failed to decode", failed, len(lines))
	}
	return nil
}

func newReplayCmd() *cobra.Command {
	var channel uint8
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Run a captured edge stream through the decoder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rd, err := capture.Open(args[0])
			if err != nil {
				return err
			}
			defer rd.Close()
			return replay(cmd.OutOrStdout(), rd, channel)
		},
	}
	cmd.Flags().Uint8Var(&channel, "channel", 0, "only accept this channel (0 accepts any)")
	return cmd
}

// replay feeds every captured edge through a fresh machine and writes a
// record for each frame that decodes. Frame times are reconstructed from
// the capture start and the accumulated edge durations.
func replay(w io.Writer, rd *capture.Reader, channel uint8) error {
	m := logic.NewMachine()
	at := rd.Header().Start()
	edges, frames, readings := 0, 0, 0

	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		edges++
		at = at.Add(time.Duration(e.Duration) * time.Microsecond)

		frame := m.Feed(e.Falling(), e.Duration)
		if frame == nil {
			continue
		}
		frames++
		if err := decodeOne(w, frame, channel, at); err != nil {
			log.WithError(err).WithField("samples", logic.FormatSamples(frame)).Debug("frame rejected")
			continue
		}
		readings++
	}

	log.WithFields(log.Fields{
		"edges":    edges,
		"frames":   frames,
		"readings": readings,
	}).Info("replay complete")
	return nil
}

func newLevelCmd() *cobra.Command {
	var (
		chip      string
		pin       int
		bias      string
		activeLow bool
	)
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Print the current level of the receiver data line and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := gpio.ParseBias(bias)
			if err != nil {
				return err
			}
			p, err := gpio.NewRealPin(chip, pin, gpio.PinOptions{Bias: b, ActiveLow: activeLow})
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer p.Close()
			return printLevel(cmd.OutOrStdout(), p, fmt.Sprintf("%s/%d", chip, pin))
		},
	}
	cmd.Flags().StringVar(&chip, "chip", gpio.DefaultChip, "GPIO chip device")
	cmd.Flags().IntVar(&pin, "pin", gpio.DefaultPin, "GPIO line offset")
	cmd.Flags().StringVar(&bias, "bias", "", "line bias: none, pull-up or pull-down")
	cmd.Flags().BoolVar(&activeLow, "active-low", false, "invert the line")
	return cmd
}

func printLevel(w io.Writer, p gpio.Pin, label string) error {
	level, err := p.Level()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", label, level)
	return err
}
