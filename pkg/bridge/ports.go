package bridge

import (
	"errors"
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/multierr"
)

// ErrNoPorts is returned when no serial ports are present.
var ErrNoPorts = errors.New("bridge: no serial ports found")

// PortInfo names one available serial port.
type PortInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// String formats the port the way pyserial-style tools list them.
func (p PortInfo) String() string {
	return p.Name + " - " + p.Description
}

// Port enumeration backends. Variables so tests can swap them out.
var (
	detailedPorts = enumerator.GetDetailedPortsList
	plainPorts    = serial.GetPortsList
)

// ListPorts returns the serial ports currently present, sorted by name.
// It prefers the detailed USB enumerator and falls back to a plain name
// listing when that fails or finds nothing.
func ListPorts() ([]PortInfo, error) {
	var ports []PortInfo

	details, err := detailedPorts()
	if err == nil {
		for _, d := range details {
			desc := d.Product
			if desc == "" {
				desc = "n/a"
			}
			if d.IsUSB && d.VID != "" {
				desc = fmt.Sprintf("%s [USB %s:%s]", desc, d.VID, d.PID)
			}
			ports = append(ports, PortInfo{Name: d.Name, Description: desc})
		}
	}

	if len(ports) == 0 {
		names, perr := plainPorts()
		if perr != nil {
			return nil, fmt.Errorf("bridge: list ports: %w", multierr.Append(err, perr))
		}
		for _, name := range names {
			ports = append(ports, PortInfo{Name: name, Description: "n/a"})
		}
	}

	if len(ports) == 0 {
		return nil, ErrNoPorts
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}
