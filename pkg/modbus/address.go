package modbus

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAddress is the device address when none is stored.
	DefaultAddress uint16 = 0x0001
	// MinAddress and MaxAddress bound a valid device address.
	MinAddress uint16 = 0x0001
	MaxAddress uint16 = 0xFFFE
)

// ValidAddress tells whether addr can be assigned to the device.
func ValidAddress(addr uint16) bool {
	return addr >= MinAddress && addr <= MaxAddress
}

type addressState struct {
	DeviceAddress uint16 `yaml:"device_address"`
}

// AddressStore holds the device address and persists it to a YAML file.
// An empty Path keeps the address in memory only.
type AddressStore struct {
	Path string
	addr atomic.Uint32
}

// NewAddressStore creates an AddressStore holding DefaultAddress.
func NewAddressStore(path string) *AddressStore {
	s := &AddressStore{Path: path}
	s.addr.Store(uint32(DefaultAddress))
	return s
}

// Load reads the stored address. A missing file or an invalid stored
// value keeps DefaultAddress.
func (s *AddressStore) Load() error {
	if s.Path == "" {
		return nil
	}
	content, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		glog.Infof("no stored device address, using 0x%04X", DefaultAddress)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Path, err)
	}
	var state addressState
	if err = yaml.Unmarshal(content, &state); err != nil {
		return fmt.Errorf("parse %s: %w", s.Path, err)
	}
	if !ValidAddress(state.DeviceAddress) {
		glog.Warningf("stored device address 0x%04X invalid, using 0x%04X", state.DeviceAddress, DefaultAddress)
		return nil
	}
	s.addr.Store(uint32(state.DeviceAddress))
	glog.Infof("device address 0x%04X", state.DeviceAddress)
	return nil
}

// Get returns the current address.
func (s *AddressStore) Get() uint16 {
	return uint16(s.addr.Load())
}

// Set changes and persists the address.
func (s *AddressStore) Set(addr uint16) error {
	if !ValidAddress(addr) {
		return fmt.Errorf("device address 0x%04X out of range", addr)
	}
	s.addr.Store(uint32(addr))
	if s.Path == "" {
		return nil
	}
	content, err := yaml.Marshal(&addressState{DeviceAddress: addr})
	if err != nil {
		return err
	}
	if err = os.WriteFile(s.Path, content, 0644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}
