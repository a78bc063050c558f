package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// FieldDef is an entry of the field table.
type FieldDef struct {
	Name     string `yaml:"name"`
	ID       int    `yaml:"id"`
	Type     string `yaml:"type"`
	Quantity int    `yaml:"quantity"`
}

// FieldTable declares the fields of a device.
type FieldTable struct {
	Fields []FieldDef `yaml:"fields"`
}

// ParseFieldTable parses a YAML field table.
func ParseFieldTable(data []byte) (*FieldTable, error) {
	var t FieldTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal field table: %w", err)
	}
	return &t, nil
}

// LoadFieldTable reads a YAML field table.
func LoadFieldTable(path string) (*FieldTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field table: %w", err)
	}
	return ParseFieldTable(b)
}

// Register registers all fields to d, stopping at the first invalid entry.
func (t *FieldTable) Register(d *field.Device) error {
	for i, def := range t.Fields {
		if def.Name == "" {
			return fmt.Errorf("%w: entry %d has no name", field.ErrInvalidField, i)
		}
		if def.ID < 0 || def.ID > 255 {
			return fmt.Errorf("%w: %q has id %d", field.ErrInvalidField, def.Name, def.ID)
		}
		typ, err := field.ParseValueType(def.Type)
		if err != nil {
			return fmt.Errorf("field %q: %w", def.Name, err)
		}
		quantity := def.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if _, err := d.Register(def.Name, byte(def.ID), typ, quantity); err != nil {
			return err
		}
	}
	return nil
}
