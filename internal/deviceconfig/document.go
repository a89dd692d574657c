package deviceconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// CurrentVersion is the schema version written to every document.
const CurrentVersion = "1.0"

// Document is the persisted device set.
type Document struct {
	Version string         `json:"version"`
	Devices []DeviceConfig `json:"devices"`
}

// DeviceConfig is one persisted device.
type DeviceConfig struct {
	Type              string            `json:"type"`
	DisplayName       string            `json:"displayName"`
	ID                string            `json:"id"`
	Parameters        map[string]string `json:"parameters"`
	CustomIdentifiers map[string]string `json:"customIdentifiers"`
}

// NewDocument builds a current-version document from devices.
func NewDocument(devices []device.Device) Document {
	doc := Document{Version: CurrentVersion, Devices: make([]DeviceConfig, 0, len(devices))}
	for _, d := range devices {
		doc.Devices = append(doc.Devices, FromDevice(d))
	}
	return doc
}

// FromDevice converts d to its persisted form. Maps are never nil.
func FromDevice(d device.Device) DeviceConfig {
	d = d.DeepCopy()
	return DeviceConfig{
		Type:              d.Identity.Type,
		DisplayName:       d.DisplayName,
		ID:                d.Identity.ID,
		Parameters:        d.Parameters,
		CustomIdentifiers: d.CustomIdentifiers,
	}
}

// Identity returns the identity of the stored device.
func (c DeviceConfig) Identity() device.Identity {
	return device.NewIdentity(c.ID, c.Type)
}

// Device converts the stored form back to a device description.
func (c DeviceConfig) Device() device.Device {
	return device.Device{
		Identity:          c.Identity(),
		DisplayName:       c.DisplayName,
		Parameters:        c.Parameters,
		CustomIdentifiers: c.CustomIdentifiers,
	}.DeepCopy()
}

// Encode renders the document as indented JSON.
func (d Document) Encode() ([]byte, error) {
	if d.Devices == nil {
		d.Devices = []DeviceConfig{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding device config: %w", err)
	}
	return append(data, '\n'), nil
}

// Read parses the document at path. A missing file yields an error
// wrapping os.ErrNotExist.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading device config: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.Version == "" {
		return Document{}, fmt.Errorf("%w: missing version", ErrInvalidDocument)
	}
	return doc, nil
}
