package volume

// Clip resamples src into region. Voxels of region not covered by src are zero.
// The result shares no memory with src.
func Clip(src *Grid, region Box) *Grid {
	out := New(region)
	overlap, ok := src.Intersect(region)
	if !ok {
		return out
	}
	for z := overlap.Origin[2]; z < overlap.Origin[2]+overlap.Size[2]; z++ {
		for y := overlap.Origin[1]; y < overlap.Origin[1]+overlap.Size[1]; y++ {
			for x := overlap.Origin[0]; x < overlap.Origin[0]+overlap.Size[0]; x++ {
				p := [3]int{x, y, z}
				out.Set(x-region.Origin[0], y-region.Origin[1], z-region.Origin[2], src.AtGlobal(p))
			}
		}
	}
	return out
}
