package measurement

import "fmt"

// Key identifies a canonical measurement tracked by the store. Adapters map
// their own entity identifiers onto these keys via configuration.
type Key int

const (
	KeyPVProduction Key = iota
	KeyLoad
	KeyBatterySoC
	KeyGridImport
	KeyGridExport
	KeyEVSoC
)

var keyNames = map[Key]string{
	KeyPVProduction: "pv_production",
	KeyLoad:         "load",
	KeyBatterySoC:   "battery_soc",
	KeyGridImport:   "grid_import",
	KeyGridExport:   "grid_export",
	KeyEVSoC:        "ev_soc",
}

// Keys returns all canonical measurement keys in a stable order.
func Keys() []Key {
	return []Key{KeyPVProduction, KeyLoad, KeyBatterySoC, KeyGridImport, KeyGridExport, KeyEVSoC}
}

// String returns the canonical identifier of the key.
func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKey resolves a canonical identifier to its Key.
func ParseKey(s string) (Key, error) {
	for k, n := range keyNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("measurement: unknown key %q", s)
}
