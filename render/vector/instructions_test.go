package vector

import (
	"reflect"
	"testing"

	"github.com/rycgar/openlayers/common"
	"github.com/rycgar/openlayers/render/geometry"
	"github.com/rycgar/openlayers/render/style"
)

func TestGeneratePolygonInstructionsLayout(t *testing.T) {
	polygons := []geometry.PolygonFeature{
		{
			Feature: &geometry.Feature{ID: 1},
			Rings: [][]float64{
				{0, 0, 4, 0, 4, 4, 0, 4},
				{1, 1, 2, 1, 1, 2},
			},
		},
	}
	got := GeneratePolygonInstructions(polygons, common.IdentityTransform(), nil)
	want := []float64{
		2, 4, 3,
		0, 0, 4, 0, 4, 4, 0, 4,
		1, 1, 2, 1, 1, 2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
}

func TestGenerateLineStringInstructionsAppliesTransform(t *testing.T) {
	lineStrings := []geometry.LineStringFeature{
		{Feature: &geometry.Feature{ID: 1}, Coordinates: []float64{1, 2, 3, 4}},
	}
	transform := common.ScaleTransform(10, 10)
	got := GenerateLineStringInstructions(lineStrings, transform, nil)
	want := []float64{2, 10, 20, 30, 40}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
}

func TestGeneratePointInstructionsCustomValues(t *testing.T) {
	points := []geometry.PointFeature{
		{Feature: &geometry.Feature{ID: 1, Properties: map[string]any{"size": 3.0}}, X: 7, Y: 8},
	}
	customs := []style.CustomAttribute{
		{
			Name: "size",
			Callback: func(f *geometry.Feature) []float64 {
				return []float64{f.Properties["size"].(float64)}
			},
		},
	}
	got := GeneratePointInstructions(points, common.IdentityTransform(), customs)
	want := []float64{7, 8, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
}

func TestCustomAttributeEvaluatedOncePerFeature(t *testing.T) {
	calls := 0
	customs := []style.CustomAttribute{
		{
			Name: "weight",
			Callback: func(f *geometry.Feature) []float64 {
				calls++
				return []float64{1}
			},
		},
	}
	polygons := []geometry.PolygonFeature{
		{
			Feature: &geometry.Feature{ID: 1},
			Rings:   [][]float64{{0, 0, 4, 0, 4, 4, 0, 4}},
		},
	}
	GeneratePolygonInstructions(polygons, common.IdentityTransform(), customs)
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1 (once per feature)", calls)
	}
}

func TestCustomAttributeShortResultPadded(t *testing.T) {
	customs := []style.CustomAttribute{
		{
			Name: "pair",
			Size: 2,
			Callback: func(f *geometry.Feature) []float64 {
				return []float64{9}
			},
		},
	}
	points := []geometry.PointFeature{
		{Feature: &geometry.Feature{ID: 1}, X: 1, Y: 1},
	}
	got := GeneratePointInstructions(points, common.IdentityTransform(), customs)
	want := []float64{1, 1, 9, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
}

func TestInstructionGenerationDeterministic(t *testing.T) {
	batch := triangleBatch(5)
	transform := common.TranslateTransform(-1, -1).Compose(common.ScaleTransform(0.02, 0.02))
	customs := []style.CustomAttribute{weightAttribute()}

	first := GeneratePolygonInstructions(batch.Polygons, transform, customs)
	second := GeneratePolygonInstructions(batch.Polygons, transform, customs)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different polygon instructions")
	}

	firstLines := GenerateLineStringInstructions(batch.LineStrings, transform, nil)
	secondLines := GenerateLineStringInstructions(batch.LineStrings, transform, nil)
	if !reflect.DeepEqual(firstLines, secondLines) {
		t.Fatal("identical inputs produced different line string instructions")
	}
}
