package testutil

import (
	"github.com/hupe1980/dcstore/array"
	"github.com/hupe1980/dcstore/datapath"
	"github.com/hupe1980/dcstore/store"
)

// Fixture names and sizes.
const (
	ImageContainer = "ImageDataContainer"
	MeshContainer  = "SurfaceMesh"

	CellMatrix     = "CellData"
	FeatureMatrix  = "CellFeatureData"
	EnsembleMatrix = "CellEnsembleData"
	VertexMatrix   = "VertexData"
	FaceMatrix     = "FaceData"

	FixtureCells    = 4 * 3 * 2
	FixtureFeatures = 5
	FixturePhases   = 2
	FixtureVertices = 8
	FixtureFaces    = 12
)

// Frequently used fixture paths.
var (
	FeatureIDsPath   = datapath.New(ImageContainer, CellMatrix, "FeatureIds")
	ConfidencePath   = datapath.New(ImageContainer, CellMatrix, "Confidence")
	MaskPath         = datapath.New(ImageContainer, CellMatrix, "Mask")
	EulerAnglesPath  = datapath.New(ImageContainer, CellMatrix, "EulerAngles")
	QuatsPath        = datapath.New(ImageContainer, FeatureMatrix, "AvgQuats")
	PhasesPath       = datapath.New(ImageContainer, FeatureMatrix, "Phases")
	NeighborListPath = datapath.New(ImageContainer, FeatureMatrix, "NeighborList")
	CrystalPath      = datapath.New(ImageContainer, EnsembleMatrix, "CrystalStructures")
	StatisticsPath   = datapath.New(ImageContainer, EnsembleMatrix, "Statistics")
	FaceLabelsPath   = datapath.New(MeshContainer, FaceMatrix, "FaceLabels")
	NodeTypePath     = datapath.New(MeshContainer, VertexMatrix, "NodeType")
)

// NewFixtureStore builds a small, fully allocated store: an image container
// with cell, feature and ensemble matrices, and a triangle mesh container.
// Values are deterministic.
func NewFixtureStore() *store.Store {
	s, err := buildFixture(NewRNG(4711))
	if err != nil {
		panic(err)
	}
	return s
}

func buildFixture(rng *RNG) (*store.Store, error) {
	s := store.New()

	img, err := s.CreateContainer(ImageContainer)
	if err != nil {
		return nil, err
	}
	img.SetGeometry(store.NewImageGeometry(4, 3, 2))

	cells, err := img.CreateMatrix(CellMatrix, []int{4, 3, 2}, store.MatrixCell)
	if err != nil {
		return nil, err
	}
	ids, err := store.CreateArray[int32](cells, FeatureIDsPath.Array, nil, true)
	if err != nil {
		return nil, err
	}
	copy(ids.Values(), rng.Int32s(FixtureCells, 1, FixtureFeatures))

	conf, err := store.CreateArray[float32](cells, ConfidencePath.Array, nil, true)
	if err != nil {
		return nil, err
	}
	rng.FillUniform(conf.Values())

	mask, err := store.CreateArray[bool](cells, MaskPath.Array, nil, true)
	if err != nil {
		return nil, err
	}
	copy(mask.Values(), rng.Bools(FixtureCells, 0.8))

	euler, err := store.CreateArray[float32](cells, EulerAnglesPath.Array, []int{3}, true)
	if err != nil {
		return nil, err
	}
	rng.FillUniformRange(euler.Values(), 0, 6.283)

	features, err := img.CreateMatrix(FeatureMatrix, []int{FixtureFeatures}, store.MatrixCellFeature)
	if err != nil {
		return nil, err
	}
	quats, err := store.CreateArray[float32](features, QuatsPath.Array, []int{4}, true)
	if err != nil {
		return nil, err
	}
	rng.FillUniformRange(quats.Values(), -1, 1)

	phases, err := store.CreateFilledArray[int32](features, PhasesPath.Array, nil, 1)
	if err != nil {
		return nil, err
	}
	phases.SetValue(0, 0)

	neighbors, err := store.CreateListArray[int32](features, NeighborListPath.Array, true)
	if err != nil {
		return nil, err
	}
	for f := 1; f < FixtureFeatures; f++ {
		neighbors.Append(f, int32(f%(FixtureFeatures-1)+1))
		if f > 1 {
			neighbors.Append(f, int32(f-1))
		}
	}

	ensembles, err := img.CreateMatrix(EnsembleMatrix, []int{FixturePhases}, store.MatrixCellEnsemble)
	if err != nil {
		return nil, err
	}
	crystal, err := store.CreateArray[uint32](ensembles, CrystalPath.Array, nil, true)
	if err != nil {
		return nil, err
	}
	crystal.SetValue(0, 999)
	crystal.SetValue(1, 1)

	stats, err := store.CreateStatsArray(ensembles, StatisticsPath.Array, true)
	if err != nil {
		return nil, err
	}
	stats.SetRecord(1, array.StatsRecord{
		Phase: "Primary",
		Series: map[string][]float64{
			"Bin Numbers":               {1, 2, 3},
			"Feature Size Distribution": {0.25, 0.5, 0.25},
		},
	})

	mesh, err := s.CreateContainer(MeshContainer)
	if err != nil {
		return nil, err
	}
	mesh.SetGeometry(&store.Geometry{Type: store.GeometryTriangle})

	verts, err := mesh.CreateMatrix(VertexMatrix, []int{FixtureVertices}, store.MatrixVertex)
	if err != nil {
		return nil, err
	}
	nodeType, err := store.CreateArray[int8](verts, NodeTypePath.Array, nil, true)
	if err != nil {
		return nil, err
	}
	nodeType.Fill(2)

	faces, err := mesh.CreateMatrix(FaceMatrix, []int{FixtureFaces}, store.MatrixFace)
	if err != nil {
		return nil, err
	}
	labels, err := store.CreateArray[int32](faces, FaceLabelsPath.Array, []int{2}, true)
	if err != nil {
		return nil, err
	}
	copy(labels.Values(), rng.Int32s(FixtureFaces*2, -1, FixtureFeatures))

	return s, nil
}
