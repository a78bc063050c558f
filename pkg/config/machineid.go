package config

import (
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves the ID identifying this host, hashed so the raw
// machine ID isn't exposed in topics.
func MachineID() (string, error) {
	id, err := machineid.ProtectedID("fieldlink")
	if err != nil {
		return "", fmt.Errorf("machine id: %w", err)
	}
	return id[:12], nil
}
