// Package units provides shared constants and conversions for signal
// measurements (decibels, normalized frequency, modulation orders).
package units

import "math"

// Modulation order constants for the phase discriminators the engine supports.
const (
	OrderBPSK = 2
	OrderQPSK = 4
	Order8PSK = 8
)

// ValidModulationOrders contains all modulation orders the synchronizer accepts.
var ValidModulationOrders = []int{OrderBPSK, OrderQPSK, Order8PSK}

// IsValidModulationOrder checks if the given order has a supported discriminator.
func IsValidModulationOrder(order int) bool {
	for _, valid := range ValidModulationOrders {
		if order == valid {
			return true
		}
	}
	return false
}

// GetValidOrdersString returns a comma-separated string of valid orders for error messages.
func GetValidOrdersString() string {
	return "2 (BPSK), 4 (QPSK), 8 (8PSK)"
}

// ModulationOrderFor maps a stored modulation type label to a discriminator
// order. Unknown or empty labels default to QPSK, the most common case in
// annotated captures.
func ModulationOrderFor(modulationType string) int {
	switch modulationType {
	case "bpsk", "BPSK", "2psk":
		return OrderBPSK
	case "qpsk", "QPSK", "4psk", "pi4qpsk":
		return OrderQPSK
	case "8psk", "8PSK", "psk8":
		return Order8PSK
	default:
		return OrderQPSK
	}
}

// LinearToDB converts a linear power ratio to decibels. Returns negative
// infinity for non-positive input; callers that need a nullable external
// representation should check the input first.
func LinearToDB(linear float64) float64 {
	return 10 * math.Log10(linear)
}

// DBToLinear converts decibels to a linear power ratio.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// NormalizeFrequency converts a frequency in Hz to a fraction of the sample
// rate. Returns 0 when sampleRate is not positive.
func NormalizeFrequency(freqHz, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return freqHz / sampleRate
}
