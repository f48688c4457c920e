package catalog

import "fmt"

// Wildcard is the reserved value usable only inside configuration entries,
// never as a stored value. A wildcarded entry is satisfied unconditionally,
// whether the key holds any value or is still unset.
const Wildcard = "*"

// Configuration is a named, possibly-wildcarded assignment of binding keys
// to values, representing one recognized whole-system state.
//
// Values maps binding key → required value (or Wildcard). Configurations
// are immutable once defined except through Catalog.Update/Remove.
type Configuration struct {
	Name   string
	Values map[string]string
}

// clone copies a configuration so callers cannot mutate catalog state.
func (c Configuration) clone() Configuration {
	values := make(map[string]string, len(c.Values))
	for k, v := range c.Values {
		values[k] = v
	}
	return Configuration{Name: c.Name, Values: values}
}

// Catalog is the ordered collection of named configurations.
//
// Definition order is load-bearing: FindMatch scans in this order and the
// first full match wins. Catalog is NOT safe for concurrent use; the
// engine owns it on its single writer goroutine.
type Catalog struct {
	configs []Configuration
	index   map[string]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Define adds a new named configuration at the end of the definition order.
//
// Fails fast on configuration-time misuse: duplicate names, empty names,
// and configurations with no entries are rejected.
func (c *Catalog) Define(name string, values map[string]string) error {
	if name == "" {
		return fmt.Errorf("define configuration: name must not be empty")
	}
	if _, exists := c.index[name]; exists {
		return fmt.Errorf("define configuration %q: already defined", name)
	}
	if len(values) == 0 {
		return fmt.Errorf("define configuration %q: must constrain at least one binding key", name)
	}

	cfg := Configuration{Name: name, Values: values}.clone()
	c.index[name] = len(c.configs)
	c.configs = append(c.configs, cfg)
	return nil
}

// Update replaces the entries of an existing configuration in place,
// preserving its position in the definition order.
func (c *Catalog) Update(name string, values map[string]string) error {
	i, exists := c.index[name]
	if !exists {
		return fmt.Errorf("update configuration %q: not defined", name)
	}
	if len(values) == 0 {
		return fmt.Errorf("update configuration %q: must constrain at least one binding key", name)
	}

	c.configs[i] = Configuration{Name: name, Values: values}.clone()
	return nil
}

// Remove deletes a named configuration. Later configurations shift up in
// the definition order. Returns false if the name is not defined.
func (c *Catalog) Remove(name string) bool {
	i, exists := c.index[name]
	if !exists {
		return false
	}

	c.configs = append(c.configs[:i], c.configs[i+1:]...)
	delete(c.index, name)
	for j := i; j < len(c.configs); j++ {
		c.index[c.configs[j].Name] = j
	}
	return true
}

// Get returns a copy of the named configuration.
func (c *Catalog) Get(name string) (Configuration, bool) {
	i, exists := c.index[name]
	if !exists {
		return Configuration{}, false
	}
	return c.configs[i].clone(), true
}

// Has reports whether a configuration name is defined.
func (c *Catalog) Has(name string) bool {
	_, exists := c.index[name]
	return exists
}

// Names returns all configuration names in definition order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.configs))
	for i, cfg := range c.configs {
		names[i] = cfg.Name
	}
	return names
}

// Len returns the number of defined configurations.
func (c *Catalog) Len() int {
	return len(c.configs)
}
