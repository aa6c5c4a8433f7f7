package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/teslashibe/go-peoplecam/internal/log"
	"github.com/teslashibe/go-peoplecam/pkg/bridge"
)

var errNoSelection = errors.New("no serial port selected")

// choosePort lists the serial ports and asks the operator to pick one.
func choosePort() (string, error) {
	ports, err := bridge.ListPorts()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		log.Debug("serial port found", "port", p.Name, "description", p.Description)
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p.String(), p.Name))
	}

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Select the serial port for the device").
			Options(options...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("port prompt: %w", err)
	}
	if choice == "" {
		return "", errNoSelection
	}
	return choice, nil
}
