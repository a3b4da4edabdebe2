//go:build tinygo && cortexm

package hal

import "device/arm"

func readIPSR() uint32 {
	return uint32(arm.AsmFull("mrs {}, IPSR", nil))
}
