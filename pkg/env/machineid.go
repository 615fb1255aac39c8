package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine. The hostname
// is used when the machine id is unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("radar")
	if err == nil {
		return id[:12]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "radar"
}
