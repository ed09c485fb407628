package index

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodmap/pkg/model"
)

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

func makeReport(id string, lat, lon float64) model.Report {
	return model.Report{
		ID:        id,
		Lat:       lat,
		Lon:       lon,
		HasCoords: true,
		Category:  model.CategoryOther,
		CreatedAt: time.Unix(0, 0),
	}
}

// scatteredReports produces a deterministic spread around central
// Vietnam, with every 10th report lacking coordinates.
func scatteredReports(n int) []model.Report {
	rng := rand.New(rand.NewSource(1))
	reports := make([]model.Report, n)
	for i := range reports {
		reports[i] = makeReport(
			fmt.Sprintf("r%03d", i),
			16.0+rng.NormFloat64()*2,
			107.5+rng.NormFloat64()*2,
		)
		if i%10 == 9 {
			reports[i].HasCoords = false
		}
	}
	return reports
}

func TestBuildExcludesMissingCoordinates(t *testing.T) {
	reports := scatteredReports(50)
	ix := Build(reports, Options{})
	assert.Equal(t, 45, ix.Size(), "reports without coordinates are filtered at build time")
}

func TestQueryDeterminism(t *testing.T) {
	ix := Build(scatteredReports(80), Options{})
	for _, zoom := range []int{0, 4, 8, 12, 21} {
		a := ix.Query(world, zoom)
		b := ix.Query(world, zoom)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("zoom %d: repeated query returned a different partition", zoom)
		}
	}
}

func TestQueryCoverage(t *testing.T) {
	reports := scatteredReports(100)
	ix := Build(reports, Options{})

	wantIDs := map[string]bool{}
	for _, r := range reports {
		if r.HasCoords {
			wantIDs[r.ID] = true
		}
	}

	for _, zoom := range []int{0, 3, 7, 11, 21} {
		got := map[string]int{}
		total := 0
		for _, ref := range ix.Query(world, zoom) {
			if ref.IsCluster {
				leaves, err := ix.Leaves(ref.ClusterID, 0)
				require.NoError(t, err, "zoom %d cluster %d", zoom, ref.ClusterID)
				assert.Len(t, leaves, ref.PointCount, "leaf count matches point_count")
				for _, l := range leaves {
					got[l.ID]++
					total++
				}
			} else {
				got[ref.Report.ID]++
				total++
			}
		}

		assert.Equal(t, len(wantIDs), total, "zoom %d: report dropped or duplicated", zoom)
		for id := range wantIDs {
			assert.Equal(t, 1, got[id], "zoom %d: report %s appears exactly once", zoom, id)
		}
	}
}

func TestMonotonicGranularity(t *testing.T) {
	ix := Build(scatteredReports(120), Options{})

	prevRefs := -1
	prevMax := 1 << 30
	for zoom := 0; zoom <= 12; zoom++ {
		refs := ix.Query(world, zoom)
		maxCount := 1
		for _, r := range refs {
			if r.PointCount > maxCount {
				maxCount = r.PointCount
			}
		}
		if len(refs) < prevRefs {
			t.Errorf("zoom %d: partition shrank from %d to %d groups", zoom, prevRefs, len(refs))
		}
		if maxCount > prevMax {
			t.Errorf("zoom %d: largest cluster grew from %d to %d", zoom, prevMax, maxCount)
		}
		prevRefs = len(refs)
		prevMax = maxCount
	}
}

func TestLeavesLimitAndOrder(t *testing.T) {
	// 12 reports packed within a few meters: one cluster at low zoom.
	var reports []model.Report
	for i := 0; i < 12; i++ {
		reports = append(reports, makeReport(
			fmt.Sprintf("p%d", i), 16.0+float64(i)*0.00001, 107.5))
	}
	ix := Build(reports, Options{})

	refs := ix.Query(world, 5)
	require.Len(t, refs, 1)
	require.True(t, refs[0].IsCluster)
	require.Equal(t, 12, refs[0].PointCount)

	limited, err := ix.Leaves(refs[0].ClusterID, 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)

	all1, err := ix.Leaves(refs[0].ClusterID, 0)
	require.NoError(t, err)
	all2, err := ix.Leaves(refs[0].ClusterID, 0)
	require.NoError(t, err)
	assert.Equal(t, all1, all2, "leaf order is deterministic per build")
	assert.Equal(t, all1[:5], limited, "limit is a prefix of the full order")
}

func TestExpansionZoom(t *testing.T) {
	// Two tight pairs far enough apart to split somewhere mid-range.
	reports := []model.Report{
		makeReport("a1", 10, 10),
		makeReport("a2", 10.0001, 10.0001),
		makeReport("b1", 12, 12),
		makeReport("b2", 12.0001, 12.0001),
	}
	ix := Build(reports, Options{})

	refs := ix.Query(world, 0)
	require.Len(t, refs, 1, "everything merges at zoom 0")
	require.True(t, refs[0].IsCluster)
	require.Equal(t, 4, refs[0].PointCount)

	ez, err := ix.ExpansionZoom(refs[0].ClusterID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ez, 1)
	assert.LessOrEqual(t, ez, 20)

	assert.Len(t, ix.Query(world, ez-1), 1, "still one group just below the expansion zoom")
	assert.Greater(t, len(ix.Query(world, ez)), 1, "splits at the expansion zoom")
}

func TestExpansionZoomSinglePoints(t *testing.T) {
	// At a zoom past MaxZoom every report stands alone.
	reports := []model.Report{
		makeReport("a1", 10, 10),
		makeReport("a2", 10.0001, 10.0001),
	}
	ix := Build(reports, Options{MaxZoom: 8})

	refs := ix.Query(world, 9)
	assert.Len(t, refs, 2)
	for _, r := range refs {
		assert.False(t, r.IsCluster)
	}
}

func TestStaleClusterID(t *testing.T) {
	ix := Build(scatteredReports(30), Options{})

	_, err := ix.Leaves(999999, 0)
	assert.True(t, errors.Is(err, ErrStaleCluster))

	_, err = ix.ExpansionZoom(999999)
	assert.True(t, errors.Is(err, ErrStaleCluster))

	// An id from a different build is stale against this one.
	other := Build(scatteredReports(500), Options{})
	var otherCluster int
	for _, ref := range other.Query(world, 6) {
		if ref.IsCluster {
			otherCluster = ref.ClusterID
			break
		}
	}
	require.NotZero(t, otherCluster)
	if _, err := ix.Leaves(otherCluster, 0); err == nil {
		// Collisions are possible when the same id exists in both
		// builds; what matters is that no panic occurs and errors map
		// to ErrStaleCluster.
		t.Log("id from other build happened to be valid here")
	} else {
		assert.True(t, errors.Is(err, ErrStaleCluster))
	}
}

func TestBboxQueryFiltersOutside(t *testing.T) {
	reports := []model.Report{
		makeReport("in", 16.0, 107.5),
		makeReport("out", 40.0, -70.0),
	}
	ix := Build(reports, Options{})

	bbox := orb.Bound{Min: orb.Point{100, 10}, Max: orb.Point{115, 22}}
	refs := ix.Query(bbox, 21)
	require.Len(t, refs, 1)
	assert.Equal(t, "in", refs[0].Report.ID)
}

func TestEmptyIndex(t *testing.T) {
	ix := Build(nil, Options{})
	assert.Equal(t, 0, ix.Size())
	assert.Empty(t, ix.Query(world, 5))
}
