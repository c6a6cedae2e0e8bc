package content

import "math"

const noiseCell = 40.0

// valueNoise is lattice value noise in [-1, 1], smoothly interpolated between cells
func valueNoise(seed int64, x, z float64) float64 {
	gx, gz := math.Floor(x/noiseCell), math.Floor(z/noiseCell)
	fx, fz := smoothstep(x/noiseCell-gx), smoothstep(z/noiseCell-gz)
	ix, iz := int64(gx), int64(gz)

	v00 := latticeValue(seed, ix, iz)
	v10 := latticeValue(seed, ix+1, iz)
	v01 := latticeValue(seed, ix, iz+1)
	v11 := latticeValue(seed, ix+1, iz+1)
	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fz
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func latticeValue(seed, x, z int64) float64 {
	h := splitmix64(uint64(seed) ^ splitmix64(uint64(x)*0x9E3779B97F4A7C15^uint64(z)))
	return float64(h>>11)/float64(1<<53)*2 - 1
}

func splitmix64(v uint64) uint64 {
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func mountain(x, z float64) float64 {
	return math.Abs(math.Sin(x*0.1) * math.Cos(z*0.1))
}
