package bme680

import "encoding/binary"

// calibration holds the factory trimming parameters.
type calibration struct {
	t1 uint16
	t2 int16
	t3 int8

	p1  uint16
	p2  int16
	p3  int8
	p4  int16
	p5  int16
	p6  int8
	p7  int8
	p8  int16
	p9  int16
	p10 uint8

	h1 uint16
	h2 uint16
	h3 int8
	h4 int8
	h5 int8
	h6 uint8
	h7 int8

	g1 int8
	g2 int16
	g3 int8

	resHeatRange uint8
	resHeatVal   int8
	rangeSwErr   int8
}

const (
	coeff1Addr = 0x8A
	coeff1Len  = 23
	coeff2Addr = 0xE1
	coeff2Len  = 14
	coeff3Addr = 0x00
	coeff3Len  = 5
)

// parseCalibration decodes the three coefficient blocks read from
// 0x8A, 0xE1 and 0x00.
func parseCalibration(c1, c2, c3 []byte) calibration {
	at1 := func(reg byte) byte { return c1[reg-coeff1Addr] }
	at2 := func(reg byte) byte { return c2[reg-coeff2Addr] }
	le1 := func(reg byte) uint16 { return binary.LittleEndian.Uint16(c1[reg-coeff1Addr:]) }
	le2 := func(reg byte) uint16 { return binary.LittleEndian.Uint16(c2[reg-coeff2Addr:]) }

	return calibration{
		t1: le2(0xE9),
		t2: int16(le1(0x8A)),
		t3: int8(at1(0x8C)),

		p1:  le1(0x8E),
		p2:  int16(le1(0x90)),
		p3:  int8(at1(0x92)),
		p4:  int16(le1(0x94)),
		p5:  int16(le1(0x96)),
		p6:  int8(at1(0x99)),
		p7:  int8(at1(0x98)),
		p8:  int16(le1(0x9C)),
		p9:  int16(le1(0x9E)),
		p10: at1(0xA0),

		h1: uint16(at2(0xE3))<<4 | uint16(at2(0xE2)&0x0F),
		h2: uint16(at2(0xE1))<<4 | uint16(at2(0xE2)>>4),
		h3: int8(at2(0xE4)),
		h4: int8(at2(0xE5)),
		h5: int8(at2(0xE6)),
		h6: at2(0xE7),
		h7: int8(at2(0xE8)),

		g1: int8(at2(0xED)),
		g2: int16(le2(0xEB)),
		g3: int8(at2(0xEE)),

		resHeatRange: (c3[0x02] & 0x30) >> 4,
		resHeatVal:   int8(c3[0x00]),
		rangeSwErr:   int8(c3[0x04]) >> 4,
	}
}

// temperature returns °C and the t_fine carry used by the other
// compensations.
func (c *calibration) temperature(adc uint32) (celsius, tFine float64) {
	a := float64(adc)
	v1 := (a/16384 - float64(c.t1)/1024) * float64(c.t2)
	x := a/131072 - float64(c.t1)/8192
	v2 := x * x * float64(c.t3) * 16
	tFine = v1 + v2
	return tFine / 5120, tFine
}

// pressure returns Pa.
func (c *calibration) pressure(adc uint32, tFine float64) float64 {
	v1 := tFine/2 - 64000
	v2 := v1 * v1 * float64(c.p6) / 131072
	v2 += v1 * float64(c.p5) * 2
	v2 = v2/4 + float64(c.p4)*65536
	v1 = (float64(c.p3)*v1*v1/16384 + float64(c.p2)*v1) / 524288
	v1 = (1 + v1/32768) * float64(c.p1)
	if v1 == 0 {
		return 0
	}
	p := 1048576 - float64(adc)
	p = (p - v2/4096) * 6250 / v1
	v1 = float64(c.p9) * p * p / 2147483648
	v2 = p * float64(c.p8) / 32768
	s := p / 256
	v3 := s * s * s * float64(c.p10) / 131072
	return p + (v1+v2+v3+float64(c.p7)*128)/16
}

// humidity returns %RH clamped to [0, 100].
func (c *calibration) humidity(adc uint16, tFine float64) float64 {
	t := tFine / 5120
	v1 := float64(adc) - (float64(c.h1)*16 + float64(c.h3)/2*t)
	v2 := v1 * (float64(c.h2) / 262144 * (1 + float64(c.h4)/16384*t + float64(c.h5)/1048576*t*t))
	v3 := float64(c.h6) / 16384
	v4 := float64(c.h7) / 2097152
	h := v2 + (v3+v4*t)*v2*v2
	return min(max(h, 0), 100)
}

var (
	gasK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

// gasResistance returns Ω for a raw reading in the given range.
func (c *calibration) gasResistance(adc uint16, gasRange uint8) float64 {
	r := gasRange & 0x0F
	v1 := 1340 + 5*float64(c.rangeSwErr)
	v2 := v1 * (1 + gasK1[r]/100)
	v3 := 1 + gasK2[r]/100
	return 1 / (v3 * 0.000000125 * float64(uint32(1)<<r) * ((float64(adc)-512)/v2 + 1))
}

// heaterResistance encodes a hotplate target temperature for res_heat_x.
func (c *calibration) heaterResistance(target, ambient float64) byte {
	target = min(target, 400)
	v1 := float64(c.g1)/16 + 49
	v2 := float64(c.g2)/32768*0.0005 + 0.00235
	v3 := float64(c.g3) / 1024
	v4 := v1 * (1 + v2*target)
	v5 := v4 + v3*ambient
	return byte(3.4 * (v5*(4/(4+float64(c.resHeatRange)))*(1/(1+float64(c.resHeatVal)*0.002)) - 25))
}

// gasWait encodes a heating duration in ms for gas_wait_x.
func gasWait(ms uint16) byte {
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor byte
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms) + factor*64
}
