package splat

import (
	"fmt"
	"io"
	"math"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/ply"
	"github.com/go-gl/mathgl/mgl32"
)

// ExportRecords runs the export kernel over every splat. With bake, the
// store's rotation and scale are applied; translation never is.
func (s *Store) ExportRecords(bake bool) ([]ply.Record, error) {
	if !s.Renderable() {
		return nil, ErrNotRenderable
	}
	o2w := s.Transform.ObjectToWorld()
	bakeRot := core.MatrixRotation(o2w)
	bakeScale := core.MatrixLossyScale(o2w)
	cuts := s.CutoutData()
	layout := s.layout
	bufs := s.Buffers()

	out := make([]ply.Record, s.count)
	s.dev.Dispatch("export-data", s.count, func(i int) {
		sp := layout.Decode(bufs, i)
		r := &out[i]
		if core.IsCut(cuts, sp.Pos) {
			r.Nor = [3]float32{1, 1, 1}
		}
		if bake {
			p := mgl32.Vec3{sp.Pos.X() * bakeScale.X(), sp.Pos.Y() * bakeScale.Y(), sp.Pos.Z() * bakeScale.Z()}
			sp.Pos = bakeRot.Rotate(p)
			sp.Rot = bakeRot.Mul(sp.Rot).Normalize()
			sp.Scale = mgl32.Vec3{sp.Scale.X() * bakeScale.X(), sp.Scale.Y() * bakeScale.Y(), sp.Scale.Z() * bakeScale.Z()}
		}
		r.Pos = sp.Pos
		for k := 0; k < 3; k++ {
			r.DC[k] = (sp.Color[k] - 0.5) / core.SHC0
			r.Scale[k] = logScale(sp.Scale[k])
			for j := 0; j < core.SHCoeffCount; j++ {
				r.Rest[k*core.SHCoeffCount+j] = sp.SH[j][k]
			}
		}
		r.Opacity = inverseSigmoid(sp.Color.W())
		r.Rot = [4]float32{sp.Rot.W, sp.Rot.V.X(), sp.Rot.V.Y(), sp.Rot.V.Z()}
	})
	return out, nil
}

func logScale(v float32) float32 {
	return float32(math.Log(float64(max(v, 1e-12))))
}

func inverseSigmoid(a float32) float32 {
	a = mgl32.Clamp(a, 1e-6, 1-1e-6)
	return float32(math.Log(float64(a / (1 - a))))
}

// Export writes every splat that is neither deleted nor cut out as PLY
// and returns the number written.
func (s *Store) Export(w io.Writer, bake bool) (int, error) {
	recs, err := s.ExportRecords(bake)
	if err != nil {
		return 0, err
	}
	n, err := ply.Write(w, recs, func(i int) bool { return !s.IsDeleted(i) })
	if err != nil {
		return n, fmt.Errorf("export %s: %w", s.Name, err)
	}
	s.log.Infof("%s: exported %d of %d splats", s.Name, n, s.count)
	return n, nil
}
