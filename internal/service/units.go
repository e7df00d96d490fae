package service

import "strings"

// Base units: grams for mass, milliliters for volume, pieces for count.
// Liquids are treated at density 1 when the footprint calculator needs
// kilograms.

type unitFamily int

const (
	familyMass unitFamily = iota
	familyVolume
	familyCount
)

var unitTable = map[string]struct {
	family unitFamily
	toBase float64
}{
	"g":  {familyMass, 1},
	"kg": {familyMass, 1000},
	"ml": {familyVolume, 1},
	"l":  {familyVolume, 1000},
	"pc": {familyCount, 1},
}

// toBaseUnits converts a quantity to its family's base unit
func toBaseUnits(qty float64, unit string) (float64, unitFamily, error) {
	u, ok := unitTable[strings.ToLower(unit)]
	if !ok {
		return 0, 0, Validationf("unit", "unknown unit %q", unit)
	}
	return qty * u.toBase, u.family, nil
}

// fromBaseUnits converts a base-unit quantity back into the given unit
func fromBaseUnits(base float64, unit string) (float64, error) {
	u, ok := unitTable[strings.ToLower(unit)]
	if !ok {
		return 0, Validationf("unit", "unknown unit %q", unit)
	}
	return base / u.toBase, nil
}

// massKg converts a quantity to kilograms for footprint math. Count units
// have no defined mass, so ok is false and the caller decides what to do.
func massKg(qty float64, unit string) (float64, bool) {
	base, family, err := toBaseUnits(qty, unit)
	if err != nil || family == familyCount {
		return 0, false
	}
	return base / 1000, true
}
