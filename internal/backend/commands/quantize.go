package commands

import (
	"cmp"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
)

// maxClusterPixels bounds the number of pixels used as k-means data points
const maxClusterPixels = 100000

// colorVector is a premultiplied RGBA colour on a 0..255 scale, the same
// space color.Palette.Index measures distances in.
type colorVector [4]float32

func vectorFromRGBA(c color.RGBA) colorVector {
	return colorVector{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}

func (v colorVector) distSquared(o colorVector) float32 {
	var d float32
	for i := range v {
		diff := v[i] - o[i]
		d += diff * diff
	}
	return d
}

func (v colorVector) add(o colorVector) colorVector {
	return colorVector{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]}
}

func (v colorVector) scale(s float32) colorVector {
	return colorVector{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

func (v colorVector) toColor() color.RGBA {
	ch := func(f float32) uint8 {
		return uint8(math.Round(math.Min(255, math.Max(0, float64(f)))))
	}
	a := ch(v[3])
	// premultiplied channels may not exceed alpha
	return color.RGBA{R: min(ch(v[0]), a), G: min(ch(v[1]), a), B: min(ch(v[2]), a), A: a}
}

// buildPalette returns a palette of at most numColors entries for img.
// Images with few enough distinct colours get an exact palette; otherwise the
// palette is the result of k-means clustering limited to maxIters iterations.
func buildPalette(img image.Image, numColors, maxIters int) color.Palette {
	bounds := img.Bounds()
	sampler := newStrideSampler(bounds.Dx()*bounds.Dy(), maxClusterPixels)
	unique := make(map[color.RGBA]struct{}, numColors+1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sampled := sampler.next()
			if !sampled && unique == nil {
				continue
			}
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if unique != nil {
				unique[c] = struct{}{}
				if len(unique) > numColors {
					unique = nil
				}
			}
			if sampled {
				sampler.add(vectorFromRGBA(c))
			}
		}
	}

	if unique != nil {
		return exactPalette(unique)
	}

	clusters := newKMeans(sampler.samples, numColors)
	loss := clusters.iterate()
	for i := 1; i < maxIters; i++ {
		newLoss := clusters.iterate()
		if newLoss >= loss {
			break
		}
		loss = newLoss
	}
	return clusters.palette()
}

func exactPalette(unique map[color.RGBA]struct{}) color.Palette {
	colors := make([]color.RGBA, 0, len(unique))
	for c := range unique {
		colors = append(colors, c)
	}
	slices.SortFunc(colors, func(a, b color.RGBA) int {
		return cmp.Compare(packRGBA(a), packRGBA(b))
	})
	palette := make(color.Palette, len(colors))
	for i, c := range colors {
		palette[i] = c
	}
	return palette
}

func packRGBA(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// strideSampler keeps one randomly placed pixel out of every window of
// stride pixels, so at most limit samples are held in memory.
type strideSampler struct {
	stride  int
	pos     int
	pick    int
	samples []colorVector
}

func newStrideSampler(total, limit int) *strideSampler {
	stride := max(1, (total+limit-1)/limit)
	return &strideSampler{
		stride:  stride,
		pick:    rand.IntN(stride),
		samples: make([]colorVector, 0, min(total, limit)),
	}
}

// next advances by one pixel and reports whether that pixel is sampled
func (s *strideSampler) next() bool {
	sampled := s.pos == s.pick
	s.pos++
	if s.pos == s.stride {
		s.pos = 0
		s.pick = rand.IntN(s.stride)
	}
	return sampled
}

func (s *strideSampler) add(v colorVector) {
	s.samples = append(s.samples, v)
}

type kMeans struct {
	centers []colorVector
	samples []colorVector
}

func newKMeans(samples []colorVector, numCenters int) *kMeans {
	return &kMeans{
		centers: kMeansPlusPlusInit(samples, numCenters),
		samples: samples,
	}
}

func (k *kMeans) nearest(v colorVector) (int, float32) {
	best := 0
	bestDist := v.distSquared(k.centers[0])
	for i := 1; i < len(k.centers); i++ {
		if d := v.distSquared(k.centers[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// iterate performs one k-means step and returns the mean squared error
// measured against the centers before the step.
func (k *kMeans) iterate() float64 {
	chunks := runtime.GOMAXPROCS(0)
	sums := make([][]colorVector, chunks)
	counts := make([][]int, chunks)
	losses := make([]float64, chunks)

	parallelFor(chunks, func(c int) {
		start, end := chunkBounds(len(k.samples), chunks, c)
		localSum := make([]colorVector, len(k.centers))
		localCount := make([]int, len(k.centers))
		localLoss := 0.0
		for _, s := range k.samples[start:end] {
			idx, d := k.nearest(s)
			localSum[idx] = localSum[idx].add(s)
			localCount[idx]++
			localLoss += float64(d)
		}
		sums[c], counts[c], losses[c] = localSum, localCount, localLoss
	})

	totalLoss := 0.0
	for c := range chunks {
		totalLoss += losses[c]
	}
	for i := range k.centers {
		var sum colorVector
		count := 0
		for c := range chunks {
			sum = sum.add(sums[c][i])
			count += counts[c][i]
		}
		if count > 0 {
			k.centers[i] = sum.scale(1 / float32(count))
		}
	}

	return totalLoss / float64(len(k.samples))
}

func (k *kMeans) palette() color.Palette {
	seen := make(map[color.RGBA]struct{}, len(k.centers))
	palette := make(color.Palette, 0, len(k.centers))
	for _, center := range k.centers {
		c := center.toColor()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		palette = append(palette, c)
	}
	return palette
}

// kMeansPlusPlusInit picks initial centers, each sampled with probability
// proportional to its squared distance from the nearest center chosen so far.
func kMeansPlusPlusInit(samples []colorVector, numCenters int) []colorVector {
	centers := make([]colorVector, 0, numCenters)
	centers = append(centers, samples[rand.IntN(len(samples))])

	dists := make([]float64, len(samples))
	sum := 0.0
	for i, s := range samples {
		dists[i] = float64(s.distSquared(centers[0]))
		sum += dists[i]
	}

	for len(centers) < numCenters {
		idx := rand.IntN(len(samples))
		if sum > 0 {
			target := rand.Float64() * sum
			idx = len(samples) - 1
			for i, d := range dists {
				target -= d
				if target < 0 {
					idx = i
					break
				}
			}
		}
		center := samples[idx]
		centers = append(centers, center)

		sum = 0
		for i, s := range samples {
			if d := float64(s.distSquared(center)); d < dists[i] {
				dists[i] = d
			}
			sum += dists[i]
		}
	}
	return centers
}
