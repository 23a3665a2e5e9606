package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CK6170/tenmadc-go/models"
	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/protocol"
	"github.com/CK6170/tenmadc-go/serial"
	"github.com/CK6170/tenmadc-go/ui"
)

var (
	channelFlag int
	voltageFlag string
	currentFlag string
	verifyFlag  bool
	actualFlag  bool
	flowFlag    bool
	ignoreFlag  int
	countFlag   int
	outputFlag  string
)

func init() {
	rootCmd.AddCommand(
		idCmd, setCmd, readCmd, onCmd, offCmd, resetCmd, statusCmd,
		saveCmd, recallCmd, beepCmd, ocpCmd, ovpCmd, lockCmd, trackCmd,
		sampleCmd, modelsCmd, portsCmd, interactiveCmd,
	)

	for _, c := range []*cobra.Command{setCmd, readCmd, onCmd, offCmd, saveCmd, sampleCmd} {
		c.Flags().IntVarP(&channelFlag, "channel", "c", 1, "Output channel")
	}

	setCmd.Flags().StringVarP(&voltageFlag, "voltage", "V", "", "Voltage in volts, e.g. 5.00")
	setCmd.Flags().StringVarP(&currentFlag, "current", "I", "", "Current limit in amps, e.g. 1.500")
	setCmd.Flags().BoolVar(&verifyFlag, "verify", false, "Read the setpoint back after writing")

	readCmd.Flags().BoolVar(&actualFlag, "actual", false, "Read the measured output instead of the setpoint")

	saveCmd.Flags().BoolVar(&flowFlag, "flow", false, "Use the recall/re-apply/save sequence for firmware that ignores the slot number")

	sampleCmd.Flags().IntVar(&ignoreFlag, "ignore", 3, "Readings discarded while the output settles")
	sampleCmd.Flags().IntVar(&countFlag, "count", 10, "Readings averaged")

	modelsCmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, yaml or json")
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the identification string and the selected model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *modern.Session) error {
			id, err := s.Identification()
			if err != nil {
				return err
			}
			fmt.Printf("%s\nmodel: %s\n", id, s.Profile().Name)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the voltage and/or current limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if voltageFlag == "" && currentFlag == "" {
			return fmt.Errorf("nothing to set, use --voltage and/or --current")
		}
		mV, mA := -1, -1
		var err error
		if voltageFlag != "" {
			if mV, err = parseMillis(voltageFlag); err != nil {
				return fmt.Errorf("voltage: %w", err)
			}
		}
		if currentFlag != "" {
			if mA, err = parseMillis(currentFlag); err != nil {
				return fmt.Errorf("current: %w", err)
			}
		}
		return withSession(cmd, func(s *modern.Session) error {
			if mV >= 0 {
				if verifyFlag {
					err = modern.SetVoltageVerified(s, channelFlag, mV)
				} else {
					err = s.SetVoltage(channelFlag, mV)
				}
				if err != nil {
					return err
				}
				ui.GreenPrintf("CH%d voltage %s V\n", channelFlag, formatMillis(mV))
			}
			if mA >= 0 {
				if verifyFlag {
					err = modern.SetCurrentVerified(s, channelFlag, mA)
				} else {
					err = s.SetCurrent(channelFlag, mA)
				}
				if err != nil {
					return err
				}
				ui.GreenPrintf("CH%d current %s A\n", channelFlag, formatMillis(mA))
			}
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:       "read voltage|current",
	Short:     "Read a setpoint, or the measured output with --actual",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"voltage", "current"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *modern.Session) error {
			var (
				v    int
				err  error
				unit string
			)
			switch strings.ToLower(args[0]) {
			case "voltage", "v":
				unit = "V"
				if actualFlag {
					v, err = s.ReadOutputVoltage(channelFlag)
				} else {
					v, err = s.ReadVoltage(channelFlag)
				}
			case "current", "i":
				unit = "A"
				if actualFlag {
					v, err = s.ReadOutputCurrent(channelFlag)
				} else {
					v, err = s.ReadCurrent(channelFlag)
				}
			default:
				return fmt.Errorf("read what? want voltage or current, got %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", formatMillis(v), unit)
			return nil
		})
	},
}

func outputCommand(on bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ch := 0
		if cmd.Flags().Changed("channel") {
			ch = channelFlag
		}
		return withSession(cmd, func(s *modern.Session) error {
			if ch > 0 {
				return s.SetChannelOutput(ch, on)
			}
			return s.SetOutput(on)
		})
	}
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch the output on (all channels unless --channel is given)",
	Args:  cobra.NoArgs,
	RunE:  outputCommand(true),
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch the output off (all channels unless --channel is given)",
	Args:  cobra.NoArgs,
	RunE:  outputCommand(false),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Switch the output off and back on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, modern.Reset)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and decode the status block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *modern.Session) error {
			st, err := s.ReadStatus()
			if err != nil {
				return err
			}
			printStatus(s.Profile(), st)
			return nil
		})
	},
}

func printStatus(p *models.Profile, st protocol.Status) {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	fmt.Printf("model:    %s\n", p.Name)
	fmt.Printf("output:   %s\n", onOff(st.Output))
	for i, o := range st.Outputs {
		fmt.Printf("  out%d:   %s\n", i+1, onOff(o))
	}
	fmt.Printf("ch1 mode: %s\n", st.Channel1Mode)
	if p.NumChannels() > 1 {
		fmt.Printf("ch2 mode: %s\n", st.Channel2Mode)
		fmt.Printf("tracking: %s\n", st.Tracking)
	}
	if p.Beep {
		fmt.Printf("beep:     %s\n", onOff(st.Beep))
	}
	fmt.Printf("lock:     %s\n", onOff(st.Lock))
}

func slotArg(args []string) (int, error) {
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("slot: %w", err)
	}
	return slot, nil
}

var saveCmd = &cobra.Command{
	Use:   "save <slot>",
	Short: "Save the panel settings to a memory slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := slotArg(args)
		if err != nil {
			return err
		}
		return withSession(cmd, func(s *modern.Session) error {
			if flowFlag {
				return modern.SaveFlow(s, slot, channelFlag)
			}
			return s.SaveMemory(slot)
		})
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <slot>",
	Short: "Recall the settings of a memory slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := slotArg(args)
		if err != nil {
			return err
		}
		return withSession(cmd, func(s *modern.Session) error {
			return s.RecallMemory(slot)
		})
	},
}

func toggleCommand(use, short string, set func(s *modern.Session, on bool) error) *cobra.Command {
	return &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, func(s *modern.Session) error { return set(s, on) })
		},
	}
}

var (
	beepCmd = toggleCommand("beep", "Switch the key beep", (*modern.Session).SetBeep)
	ocpCmd  = toggleCommand("ocp", "Switch over-current protection", (*modern.Session).SetOCP)
	ovpCmd  = toggleCommand("ovp", "Switch over-voltage protection", (*modern.Session).SetOVP)
	lockCmd = toggleCommand("lock", "Lock or unlock the front panel", (*modern.Session).SetLock)
)

var trackCmd = &cobra.Command{
	Use:       "track independent|series|parallel",
	Short:     "Set the output tracking mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"independent", "series", "parallel"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, ok := protocol.ParseTracking(args[0])
		if !ok {
			return fmt.Errorf("unknown tracking mode %q", args[0])
		}
		return withSession(cmd, func(s *modern.Session) error {
			return s.SetTracking(mode)
		})
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Average the measured output over several readings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *modern.Session) error {
			res, err := modern.SampleOutput(cmd.Context(), s, channelFlag, ignoreFlag, countFlag, func(u modern.SampleUpdate) {
				switch u.Phase {
				case modern.SamplePhaseIgnoring:
					ui.DebugPrintf(cfg.Debug, "settling %d/%d\n", u.IgnoreDone, u.IgnoreTarget)
				case modern.SamplePhaseAveraging:
					fmt.Printf("%3d  %s V  %s A\n", u.AvgDone, formatMillis(u.Current.Millivolts), formatMillis(u.Current.Milliamps))
				}
			})
			if err != nil {
				return err
			}
			ui.GreenPrintf("mean %.1f mV (sd %.1f)  %.1f mA (sd %.1f)  n=%d\n",
				res.MeanMillivolts, res.StdMillivolts, res.MeanMilliamps, res.StdMilliamps, res.Count)
			return nil
		})
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeModels(cmd.OutOrStdout(), outputFlag)
	},
}

func writeModels(w io.Writer, format string) error {
	profiles := models.All()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(profiles)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCH\tMAX V\tMAX A\tSLOTS\tNOTE")
		for _, p := range profiles {
			ch, _ := p.Channel(1)
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n", p.Name, p.NumChannels(),
				formatMillis(ch.MaxMillivolts), formatMillis(ch.MaxMilliamps), p.MemorySlots, p.Note)
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown output format %q", format)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	// No config is needed to list ports.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			ui.WarningPrintf("no serial ports found\n")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(os.Stdout, p)
		}
		return nil
	},
}
