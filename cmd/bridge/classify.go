package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/domain"
)

var classifyCmd = &cobra.Command{
	Use:   "classify MESSAGE...",
	Short: "Show how broadcast messages would be classified",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		router := application.NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
		for _, msg := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", msg, describe(router.Classify(msg)))
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func describe(c domain.Command) string {
	parts := []string{string(c.Kind)}

	switch c.Kind {
	case domain.KindAnalogSensorRead, domain.KindDigitalInputRead, domain.KindDigitalOutputWrite:
		parts = append(parts, fmt.Sprintf("token=%s", c.Token), fmt.Sprintf("pin=%d", c.Pin))
		if c.Kind == domain.KindDigitalOutputWrite {
			parts = append(parts, fmt.Sprintf("on=%t", c.On))
		}
	case domain.KindPWMWrite:
		parts = append(parts, fmt.Sprintf("pin=%d", c.Pin), fmt.Sprintf("intensity=%d", c.Intensity))
	case domain.KindDisplayColor:
		parts = append(parts, fmt.Sprintf("color=#%02x%02x%02x", c.Color[0], c.Color[1], c.Color[2]))
	case domain.KindDisplayText:
		parts = append(parts, fmt.Sprintf("text=%q", c.Text))
	case domain.KindAnalogRead, domain.KindDigitalRead, domain.KindSetInputMode, domain.KindSetOutputMode,
		domain.KindDigitalWriteHigh, domain.KindDigitalWriteLow, domain.KindTemperatureRead,
		domain.KindHumidityRead, domain.KindDistanceRead:
		parts = append(parts, fmt.Sprintf("pin=%d", c.Pin))
	}

	return strings.Join(parts, " ")
}
