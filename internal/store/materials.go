package store

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Material describes a beam material. Stresses and moduli are in Pa,
// area in m^2, density in kg/m^3.
type Material struct {
	Name    string  `yaml:"name"`
	EModPa  float64 `yaml:"e_modulus_pa"`
	AreaM2  float64 `yaml:"area_m2"`
	Density float64 `yaml:"density_kg_m3"`
	YieldPa float64 `yaml:"yield_pa"`
}

// Builtin materials available without a catalog file.
func BuiltinMaterials() []Material {
	return []Material{
		{Name: "steel", EModPa: 210e9, AreaM2: 1e-4, Density: 7850, YieldPa: 235e6},
		{Name: "aluminum", EModPa: 70e9, AreaM2: 1e-4, Density: 2700, YieldPa: 95e6},
		{Name: "titanium", EModPa: 105e9, AreaM2: 1e-4, Density: 4500, YieldPa: 830e6},
	}
}

// MaterialCatalog is a name-keyed material collection backed by a YAML
// file. Builtins are always present; saved entries with the same name
// shadow them.
type MaterialCatalog struct {
	path  string
	saved map[string]Material
}

func OpenMaterialCatalog(path string) (*MaterialCatalog, error) {
	c := &MaterialCatalog{path: path, saved: make(map[string]Material)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	var doc struct {
		Materials []Material `yaml:"materials"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("materials: %w", err)
	}
	for _, m := range doc.Materials {
		c.saved[m.Name] = m
	}
	return c, nil
}

// Get resolves a material by name, preferring saved entries over
// builtins.
func (c *MaterialCatalog) Get(name string) (Material, error) {
	if m, ok := c.saved[name]; ok {
		return m, nil
	}
	for _, m := range BuiltinMaterials() {
		if m.Name == name {
			return m, nil
		}
	}
	return Material{}, fmt.Errorf("materials: %q not found", name)
}

// List returns all materials sorted by name.
func (c *MaterialCatalog) List() []Material {
	byName := make(map[string]Material)
	for _, m := range BuiltinMaterials() {
		byName[m.Name] = m
	}
	for name, m := range c.saved {
		byName[name] = m
	}
	out := make([]Material, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add validates and persists a new material. Names are unique.
func (c *MaterialCatalog) Add(m Material) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("materials: name must not be empty")
	}
	if _, ok := c.saved[m.Name]; ok {
		return fmt.Errorf("materials: %q already exists", m.Name)
	}
	if m.EModPa <= 0 || m.AreaM2 <= 0 || m.Density <= 0 {
		return fmt.Errorf("materials: modulus, area and density must be positive")
	}
	c.saved[m.Name] = m
	return c.flush()
}

// Delete removes a saved material. Builtins cannot be deleted.
func (c *MaterialCatalog) Delete(name string) (bool, error) {
	if _, ok := c.saved[name]; !ok {
		return false, nil
	}
	delete(c.saved, name)
	return true, c.flush()
}

func (c *MaterialCatalog) flush() error {
	names := make([]string, 0, len(c.saved))
	for name := range c.saved {
		names = append(names, name)
	}
	sort.Strings(names)
	var doc struct {
		Materials []Material `yaml:"materials"`
	}
	for _, name := range names {
		doc.Materials = append(doc.Materials, c.saved[name])
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}
