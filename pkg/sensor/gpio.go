package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GPIOPresence reads a sysfs GPIO value file. A HIGH pin means water
// is detected.
type GPIOPresence struct {
	path string
}

// NewGPIOPresence reads the sysfs value file at path.
func NewGPIOPresence(path string) *GPIOPresence {
	return &GPIOPresence{path: path}
}

func (g *GPIOPresence) Present() (bool, error) {
	content, err := os.ReadFile(filepath.Clean(g.path))
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(string(content)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected gpio value %q", strings.TrimSpace(string(content)))
	}
}
