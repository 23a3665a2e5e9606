package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/ui"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Single-key control: o on, f off, r reset, s status, q quit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := ui.StartKeyEvents()
		if err != nil {
			return fmt.Errorf("keyboard: %w", err)
		}
		defer ui.StopKeyEvents()

		ui.ClearScreen()
		ui.InfoPrintf("%s on %s\n", s.Profile().Name, cfg.Serial.Port)
		fmt.Println("o: output on  f: output off  r: reset  s: status  q: quit")
		ui.DrainKeys(keys)

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case k, ok := <-keys:
				if !ok {
					return nil
				}
				if quit := handleKey(s, k); quit {
					return nil
				}
			}
		}
	},
}

// handleKey runs the action bound to k and reports whether to quit. Errors
// are printed and the loop continues.
func handleKey(s *modern.Session, k rune) bool {
	var err error
	switch k {
	case 'o', 'O':
		if err = s.SetOutput(true); err == nil {
			ui.GreenPrintf("output on\n")
		}
	case 'f', 'F':
		if err = s.SetOutput(false); err == nil {
			ui.WarningPrintf("output off\n")
		}
	case 'r', 'R':
		if err = modern.Reset(s); err == nil {
			ui.GreenPrintf("output reset\n")
		}
	case 's', 'S':
		st, serr := s.ReadStatus()
		if err = serr; err == nil {
			printStatus(s.Profile(), st)
		}
	case 'q', 'Q', ui.KeyEsc:
		return true
	default:
		return false
	}
	if err != nil {
		ui.ErrorPrintf("Error: %v\n", err)
	}
	return false
}
